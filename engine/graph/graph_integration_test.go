//go:build integration

package graph

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	uri := envOr("NEO4J_URI", "bolt://localhost:7687")
	auth := neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASSWORD", "password"), "")
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Skipf("neo4j unavailable: %v", err)
	}
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestNeo4j_ImportAndSubgraph(t *testing.T) {
	store := NewFromDriver(testDriver(t))
	ctx := context.Background()

	seed := Seed{
		Nodes: []SeedNode{
			{ID: "11", Type: LabelGoal},
			{ID: "11.2", Type: LabelTarget},
			{ID: "11.2.1", Type: LabelIndicator},
			{ID: "Population", Type: LabelConcept},
			{ID: "Zone", Type: LabelAttribute},
		},
		Edges: []SeedEdge{
			{Source: "11", Target: "11.2", Label: RelHasTarget},
			{Source: "11.2", Target: "11.2.1", Label: RelHasIndicator},
			{Source: "11.2.1", Target: "Population", Label: RelHasConcept},
			{Source: "Population", Target: "Zone", Label: RelHasAttribute},
		},
	}
	if err := store.Reinitialize(ctx, seed); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}

	attrs, err := store.Attributes(ctx, "Population")
	if err != nil || len(attrs) != 1 {
		t.Fatalf("Attributes = %v, %v", attrs, err)
	}

	imp := Import{
		Database: Database{ID: "pop92", CSVEncoding: "utf-8", CSVSeparator: ","},
		Concept:  "Population",
		Mapping:  map[string]string{"CODE_IRIS": "Zone", "X": domain.Drop},
	}
	if err := store.ImportDatabase(ctx, imp); err != nil {
		t.Fatalf("ImportDatabase: %v", err)
	}
	if err := store.ImportDatabase(ctx, imp); !errors.Is(err, domain.ErrDatabaseExists) {
		t.Fatalf("second import: expected ErrDatabaseExists, got %v", err)
	}

	v, err := store.Subgraph(ctx, "pop92", domain.Indicator11_2_1)
	if err != nil {
		t.Fatalf("Subgraph: %v", err)
	}
	if len(v.Nodes) != 7 {
		t.Fatalf("expected 7 nodes, got %d", len(v.Nodes))
	}
}
