package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// SeedNode is a node of the seed file. Every key other than id and type is
// stored as a property.
type SeedNode struct {
	ID    any
	Type  string
	Props map[string]any
}

// UnmarshalJSON splits id and type from the remaining properties.
func (n *SeedNode) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ID = raw["id"]
	n.Type, _ = raw["type"].(string)
	delete(raw, "id")
	delete(raw, "type")
	n.Props = raw
	return nil
}

// SeedEdge is an edge of the seed file.
type SeedEdge struct {
	Source any    `json:"source"`
	Target any    `json:"target"`
	Label  string `json:"label"`
}

// Seed is the initial SDG graph.
type Seed struct {
	Nodes []SeedNode `json:"nodes"`
	Edges []SeedEdge `json:"edges"`
}

// ReadSeed loads a seed file.
func ReadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("graph: seed: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("graph: seed %s: %w", path, err)
	}
	return s, nil
}

// Reset deletes every node and relationship.
func (g *GraphStore) Reset(ctx context.Context) error {
	if _, err := g.query(ctx, `MATCH (n) DETACH DELETE n`, nil); err != nil {
		return fmt.Errorf("graph: reset: %w", err)
	}
	return nil
}

// LoadSeed merges the seed's nodes by (type, id) and its edges by endpoints
// and type. Loading twice leaves the graph unchanged.
func (g *GraphStore) LoadSeed(ctx context.Context, s Seed) error {
	for _, n := range s.Nodes {
		label := sanitizeIdent(n.Type)
		if label == "" {
			return fmt.Errorf("graph: seed node %v: missing type", n.ID)
		}
		props := n.Props
		if props == nil {
			props = map[string]any{}
		}
		cypher := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props", label)
		if _, err := g.query(ctx, cypher, map[string]any{"id": jsonID(n.ID), "props": props}); err != nil {
			return fmt.Errorf("graph: seed node %v: %w", n.ID, err)
		}
	}
	for _, e := range s.Edges {
		cypher := fmt.Sprintf("MATCH (a {id: $source}), (b {id: $target}) MERGE (a)-[:%s]->(b)", sanitizeRelType(e.Label))
		if _, err := g.query(ctx, cypher, map[string]any{"source": jsonID(e.Source), "target": jsonID(e.Target)}); err != nil {
			return fmt.Errorf("graph: seed edge %v->%v: %w", e.Source, e.Target, err)
		}
	}
	return nil
}

// Reinitialize clears the graph and loads s.
func (g *GraphStore) Reinitialize(ctx context.Context, s Seed) error {
	if err := g.Reset(ctx); err != nil {
		return err
	}
	return g.LoadSeed(ctx, s)
}

// jsonID turns whole JSON numbers into int64 so they match integer ids
// written by other clients.
func jsonID(v any) any {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}
