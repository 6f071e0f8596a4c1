package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wissalbenjira/SDG-KG/pkg/osm"
)

func TestParseBBox(t *testing.T) {
	box, err := parseBBox(hautsDeSeine)
	require.NoError(t, err)
	assert.Equal(t, 48.729, box.South)
	assert.Equal(t, 2.337, box.East)

	_, err = parseBBox("1,2,3")
	assert.Error(t, err)
	_, err = parseBBox("48.9,2.1,48.7,2.3")
	assert.Error(t, err)
}

func TestParseYears(t *testing.T) {
	ys, err := parseYears("2017-2019")
	require.NoError(t, err)
	assert.Equal(t, []int{2017, 2018, 2019}, ys)

	ys, err = parseYears("2017, 2021")
	require.NoError(t, err)
	assert.Equal(t, []int{2017, 2021}, ys)

	_, err = parseYears("2021-2017")
	assert.Error(t, err)
	_, err = parseYears("soon")
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	stops := []osm.Stop{
		{ID: "1", Class: "bus_stop", Year: 2020, Name: "Mairie", Lat: 48.8, Lon: 2.2},
		{ID: "1", Class: "bus_stop", Year: 2021, Name: "Mairie", Lat: 48.8, Lon: 2.2},
	}
	require.NoError(t, write(dir, "stops", stops))

	csv, err := os.ReadFile(filepath.Join(dir, "stops.csv"))
	require.NoError(t, err)
	assert.Equal(t, "osm_id,fclass,year,name\n1,bus_stop,2020,Mairie\n1,bus_stop,2021,Mairie\n", string(csv))

	raw, err := os.ReadFile(filepath.Join(dir, "stops.geojson"))
	require.NoError(t, err)
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &fc))
	assert.Len(t, fc.Features, 1)
}
