// Command seed loads the SDG seed file into Neo4j. By default the graph is
// wiped first; -merge keeps existing nodes and merges the seed over them.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/wissalbenjira/SDG-KG/engine/graph"
	"github.com/wissalbenjira/SDG-KG/pkg/config"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("SDGRAPH_CONFIG", config.DefaultPath), "config file holding the Neo4j connection")
	seedPath := flag.String("seed", envOr("SEED_FILE", "sdg_initt.json"), "seed JSON file")
	merge := flag.Bool("merge", false, "merge into the existing graph instead of wiping it")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, *configPath, *seedPath, *merge); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, seedPath string, merge bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	seed, err := graph.ReadSeed(seedPath)
	if err != nil {
		return err
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, neo4j.BasicAuth(cfg.Neo4j.Username, cfg.Neo4j.Password, ""))
	if err != nil {
		return err
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return err
	}

	gs := graph.NewFromDriver(driver)
	if merge {
		err = gs.LoadSeed(ctx, seed)
	} else {
		err = gs.Reinitialize(ctx, seed)
	}
	if err != nil {
		return err
	}

	stats, err := gs.Stats(ctx)
	if err != nil {
		return err
	}
	logger.Info("graph seeded", "seed", seedPath, "merge", merge,
		"seed_nodes", len(seed.Nodes), "seed_edges", len(seed.Edges),
		"nodes", stats.Nodes, "relationships", stats.Relationships)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
