// Command fetchstops downloads public transport stops from OpenStreetMap for
// a bounding box and a range of years, and writes the stop table and stop
// geometries read by the indicator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wissalbenjira/SDG-KG/pkg/osm"
)

// hautsDeSeine bounds département 92.
const hautsDeSeine = "48.729,2.145,48.951,2.337"

func main() {
	_ = godotenv.Load()

	bbox := flag.String("bbox", hautsDeSeine, "south,west,north,east")
	years := flag.String("years", "2014-2024", "year range (2014-2024) or list (2017,2021)")
	outDir := flag.String("out", envOr("DATA_DIR", "data"), "output directory")
	name := flag.String("name", "PublicTransportStop (2014-2024, OpenStreetMap)", "output file base name")
	endpoint := flag.String("endpoint", envOr("OVERPASS_URL", osm.DefaultEndpoint), "Overpass API endpoint")
	timeout := flag.Duration("timeout", 3*time.Minute, "per-query timeout")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	box, err := parseBBox(*bbox)
	if err != nil {
		logger.Error("invalid bbox", "err", err)
		os.Exit(2)
	}
	ys, err := parseYears(*years)
	if err != nil {
		logger.Error("invalid years", "err", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	f := osm.NewFetcher(*endpoint, *timeout, logger)
	var stops []osm.Stop
	for _, y := range ys {
		got, err := f.Fetch(ctx, box, y)
		if err != nil {
			logger.Error("fetch failed", "year", y, "err", err)
			os.Exit(1)
		}
		stops = append(stops, got...)
	}

	if err := write(*outDir, *name, stops); err != nil {
		logger.Error("write failed", "err", err)
		os.Exit(1)
	}
	logger.Info("stops written", "dir", *outDir, "name", *name, "rows", len(stops), "years", len(ys))
}

func write(dir, name string, stops []osm.Stop) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	csvFile, err := os.Create(filepath.Join(dir, name+".csv"))
	if err != nil {
		return err
	}
	if err := osm.WriteCSV(csvFile, stops); err != nil {
		csvFile.Close()
		return err
	}
	if err := csvFile.Close(); err != nil {
		return err
	}

	b, err := json.Marshal(osm.GeoJSON(stops))
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".geojson"), b, 0o644)
}

func parseBBox(s string) (osm.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return osm.BBox{}, fmt.Errorf("want 4 comma separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return osm.BBox{}, fmt.Errorf("bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	box := osm.BBox{South: v[0], West: v[1], North: v[2], East: v[3]}
	if !box.Valid() {
		return osm.BBox{}, fmt.Errorf("bbox %s is empty or out of range", box)
	}
	return box, nil
}

func parseYears(s string) ([]int, error) {
	if from, to, ok := strings.Cut(s, "-"); ok {
		a, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, err
		}
		b, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return nil, err
		}
		if b < a {
			return nil, fmt.Errorf("year range %d-%d is reversed", a, b)
		}
		out := make([]int, 0, b-a+1)
		for y := a; y <= b; y++ {
			out = append(out, y)
		}
		return out, nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
