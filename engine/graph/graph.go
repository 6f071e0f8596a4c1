package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/wissalbenjira/SDG-KG/pkg/fn"
	"github.com/wissalbenjira/SDG-KG/pkg/repo"
)

// GraphStore provides SDG graph operations over Neo4j sessions.
type GraphStore struct {
	opener    repo.Opener
	databases *repo.Neo4jRepo[Database, string]
}

// New creates a GraphStore on opener.
func New(opener repo.Opener) *GraphStore {
	return &GraphStore{
		opener:    opener,
		databases: newDatabaseRepo(opener),
	}
}

// NewFromDriver creates a GraphStore on the driver's default database.
func NewFromDriver(driver neo4j.DriverWithContext) *GraphStore {
	return New(repo.NewDriverOpener(driver, ""))
}

// query runs one statement in its own session and drains the result.
func (g *GraphStore) query(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return repo.Collect(ctx, res), nil
}

// Nodes lists every node carrying one of Labels. A node reached under two
// labels keeps the last one.
func (g *GraphStore) Nodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	for _, label := range Labels {
		recs, err := g.query(ctx, fmt.Sprintf("MATCH (n:%s) RETURN n", label), nil)
		if err != nil {
			return nil, fmt.Errorf("graph: nodes %s: %w", label, err)
		}
		for _, rec := range recs {
			node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
			if err != nil {
				return nil, fmt.Errorf("graph: nodes %s: %w", label, err)
			}
			nodes = append(nodes, nodeFromProps(label, node.Props))
		}
	}
	return fn.UniqueBy(nodes, func(n Node) string { return n.ID }), nil
}

// Edges lists every relationship as (source id, target id, type).
func (g *GraphStore) Edges(ctx context.Context) ([]Edge, error) {
	recs, err := g.query(ctx, `MATCH (a)-[r]->(b) RETURN a.id AS source, b.id AS target, type(r) AS type`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: edges: %w", err)
	}
	edges := make([]Edge, 0, len(recs))
	for _, rec := range recs {
		src, _ := rec.Get("source")
		dst, _ := rec.Get("target")
		typ, _ := rec.Get("type")
		edges = append(edges, Edge{Source: idOf(src), Target: idOf(dst), Type: idOf(typ)})
	}
	return edges, nil
}

// View returns the nodes whose label is in labels and the edges joining two
// of them. Empty labels select DefaultViewLabels.
func (g *GraphStore) View(ctx context.Context, labels []string) (View, error) {
	nodes, err := g.Nodes(ctx)
	if err != nil {
		return View{}, err
	}
	edges, err := g.Edges(ctx)
	if err != nil {
		return View{}, err
	}
	if len(labels) == 0 {
		labels = DefaultViewLabels
	}
	return Filter(nodes, edges, labels), nil
}

// Filter keeps nodes with a label in labels, and edges whose two ends are
// both kept.
func Filter(nodes []Node, edges []Edge, labels []string) View {
	keep := fn.Set(labels)
	v := View{Nodes: fn.Filter(nodes, func(n Node) bool { return keep[n.Label] })}
	visible := fn.Set(fn.Map(v.Nodes, func(n Node) string { return n.ID }))
	v.Edges = fn.Filter(edges, func(e Edge) bool { return visible[e.Source] && visible[e.Target] })
	return v
}

// Concepts lists concept ids.
func (g *GraphStore) Concepts(ctx context.Context) ([]string, error) {
	recs, err := g.query(ctx, `MATCH (c:Concept) RETURN c.id AS id ORDER BY id`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: concepts: %w", err)
	}
	return ids(recs), nil
}

// Attributes lists the attribute ids of a concept.
func (g *GraphStore) Attributes(ctx context.Context, concept string) ([]string, error) {
	recs, err := g.query(ctx,
		`MATCH (c:Concept {id: $concept})-[:HAS_ATTRIBUTE]->(a:Attribute) RETURN a.id AS id ORDER BY id`,
		map[string]any{"concept": concept})
	if err != nil {
		return nil, fmt.Errorf("graph: attributes of %s: %w", concept, err)
	}
	return ids(recs), nil
}

func ids(recs []*neo4j.Record) []string {
	return fn.FilterMap(recs, func(rec *neo4j.Record) (string, bool) {
		v, ok := rec.Get("id")
		id := idOf(v)
		return id, ok && id != ""
	})
}

// Databases lists imported database nodes.
func (g *GraphStore) Databases(ctx context.Context, opts repo.ListOpts) ([]Database, error) {
	return g.databases.List(ctx, opts)
}

// Database returns one imported database node.
func (g *GraphStore) Database(ctx context.Context, id string) (Database, error) {
	return g.databases.Get(ctx, id)
}

// DatabaseExists reports whether a Database node with id is present.
func (g *GraphStore) DatabaseExists(ctx context.Context, id string) (bool, error) {
	return g.databases.Exists(ctx, id)
}

// DeleteDatabase removes a database node and its relationships. Its Column
// nodes stay, they may be shared with other databases.
func (g *GraphStore) DeleteDatabase(ctx context.Context, id string) error {
	return g.databases.Delete(ctx, id)
}

// sanitizeIdent keeps the characters Cypher accepts in an unquoted label or
// relationship type.
func sanitizeIdent(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) > 0 && safe[0] >= '0' && safe[0] <= '9' {
		safe = append([]byte{'_'}, safe...)
	}
	return string(safe)
}

// sanitizeRelType uppercases a sanitized relationship type; empty input
// becomes RELATED_TO.
func sanitizeRelType(t string) string {
	safe := []byte(sanitizeIdent(t))
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}
