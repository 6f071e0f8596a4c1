package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/pkg/fn"
)

const (
	cypherConceptExists = `MATCH (c:Concept {id: $concept}) RETURN c LIMIT 1`
	cypherLinkConcept   = `MATCH (c:Concept {id: $concept}), (db:Database {id: $db})
MERGE (c)-[:HAS_INSTANCE]->(db)`
	cypherMapColumn = `MERGE (col:Column {id: $column})
MERGE (db:Database {id: $db})
MERGE (attr:Attribute {id: $attribute})
MERGE (col)-[:IS_MAPPED_TO]->(attr)
MERGE (db)-[:HAS_COLUMN]->(col)`
	cypherSubgraph = `MATCH (g:Goal)-->(t:Target)-->(i:Indicator {id: $indicator})-[:HAS_CONCEPT]->(c:Concept)
      -[:HAS_INSTANCE]->(db:Database {id: $db})-[:HAS_COLUMN]->(col:Column)
      -[:IS_MAPPED_TO]->(attr:Attribute)
RETURN g, t, i, c, db, col, attr`
)

// ImportDatabase attaches a dataset to the graph: the Database node, its
// HAS_INSTANCE link from the concept, and one Column per kept mapping entry
// linked to its Attribute. An existing database id fails with
// domain.ErrDatabaseExists before anything is written. Statements run one by
// one; a failure part way leaves the earlier writes in place.
func (g *GraphStore) ImportDatabase(ctx context.Context, imp Import) error {
	dbID := imp.Database.ID
	exists, err := g.DatabaseExists(ctx, dbID)
	if err != nil {
		return fmt.Errorf("graph: import %s: %w", dbID, err)
	}
	if exists {
		return fmt.Errorf("graph: import %s: %w", dbID, domain.ErrDatabaseExists)
	}
	recs, err := g.query(ctx, cypherConceptExists, map[string]any{"concept": imp.Concept})
	if err != nil {
		return fmt.Errorf("graph: import %s: %w", dbID, err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("graph: import %s: %w", dbID, domain.NewValidationError("concept", imp.Concept, domain.ErrUnknownConcept))
	}

	if _, err := g.databases.Merge(ctx, imp.Database); err != nil {
		return fmt.Errorf("graph: import %s: database node: %w", dbID, err)
	}
	if _, err := g.query(ctx, cypherLinkConcept, map[string]any{"concept": imp.Concept, "db": dbID}); err != nil {
		return fmt.Errorf("graph: import %s: concept link: %w", dbID, err)
	}

	columns := make([]string, 0, len(imp.Mapping))
	for col, attr := range imp.Mapping {
		if attr != domain.Drop {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)
	for _, col := range columns {
		params := map[string]any{"column": col, "db": dbID, "attribute": imp.Mapping[col]}
		if _, err := g.query(ctx, cypherMapColumn, params); err != nil {
			return fmt.Errorf("graph: import %s: column %s: %w", dbID, col, err)
		}
	}
	return nil
}

// Subgraph returns the Goal→Target→Indicator→Concept→Database→Column→Attribute
// chains of an imported database under indicator.
func (g *GraphStore) Subgraph(ctx context.Context, dbID, indicator string) (View, error) {
	recs, err := g.query(ctx, cypherSubgraph, map[string]any{"db": dbID, "indicator": indicator})
	if err != nil {
		return View{}, fmt.Errorf("graph: subgraph %s: %w", dbID, err)
	}

	var v View
	for _, rec := range recs {
		n := make(map[string]dbtype.Node, 7)
		for _, key := range []string{"g", "t", "i", "c", "db", "col", "attr"} {
			node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, key)
			if err != nil {
				return View{}, fmt.Errorf("graph: subgraph %s: %w", dbID, err)
			}
			n[key] = node
			v.Nodes = append(v.Nodes, displayNode(node))
		}
		id := func(k string) string { return strProp(n[k].Props, "id") }
		v.Edges = append(v.Edges,
			Edge{id("g"), id("t"), RelHasTarget},
			Edge{id("t"), id("i"), RelHasIndicator},
			Edge{id("i"), id("c"), RelHasConcept},
			Edge{id("c"), id("db"), RelHasInstance},
			Edge{id("db"), id("col"), RelHasColumn},
			Edge{id("col"), id("attr"), RelIsMappedTo},
			Edge{id("c"), id("attr"), RelHasAttribute},
		)
	}
	v.Nodes = fn.Unique(v.Nodes)
	v.Edges = fn.Unique(v.Edges)
	return v, nil
}

func displayNode(node dbtype.Node) Node {
	label := ""
	if len(node.Labels) > 0 {
		label = node.Labels[0]
	}
	return nodeFromProps(label, node.Props)
}
