package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Stats counts nodes per label and relationships per type.
type Stats struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
}

// NodeCounts returns the number of nodes per primary label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	recs, err := g.query(ctx, `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: node counts: %w", err)
	}
	return counts(recs), nil
}

// RelationshipCounts returns the number of relationships per type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	recs, err := g.query(ctx, `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: relationship counts: %w", err)
	}
	return counts(recs), nil
}

// Stats gathers both counts.
func (g *GraphStore) Stats(ctx context.Context) (Stats, error) {
	nodes, err := g.NodeCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	rels, err := g.RelationshipCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Nodes: nodes, Relationships: rels}, nil
}

func counts(recs []*neo4j.Record) map[string]int64 {
	out := make(map[string]int64, len(recs))
	for _, rec := range recs {
		typ, _ := rec.Get("type")
		n, _ := rec.Get("count")
		c, _ := n.(int64)
		out[idOf(typ)] += c
	}
	return out
}
