package graph

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/wissalbenjira/SDG-KG/pkg/repo"
)

// newDatabaseRepo creates a repository for Database nodes.
func newDatabaseRepo(opener repo.Opener) *repo.Neo4jRepo[Database, string] {
	return repo.NewNeo4jRepo[Database, string](
		opener,
		LabelDatabase,
		databaseToMap,
		databaseFromRecord,
	)
}

func databaseToMap(d Database) map[string]any {
	return map[string]any{
		"id":               d.ID,
		"csv_filepath":     d.CSVPath,
		"geojson_filepath": d.GeoJSONPath,
		"csv_encoding":     d.CSVEncoding,
		"csv_separator":    d.CSVSeparator,
	}
}

func databaseFromRecord(rec *neo4j.Record) (Database, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Database{}, err
	}
	p := node.Props
	return Database{
		ID:           strProp(p, "id"),
		CSVPath:      strProp(p, "csv_filepath"),
		GeoJSONPath:  strProp(p, "geojson_filepath"),
		CSVEncoding:  strProp(p, "csv_encoding"),
		CSVSeparator: strProp(p, "csv_separator"),
	}, nil
}

// nodeFromProps builds a display node. Name falls back to the "label"
// property, then to the id.
func nodeFromProps(label string, props map[string]any) Node {
	n := Node{
		ID:          strProp(props, "id"),
		Label:       label,
		Name:        strProp(props, "name"),
		Description: strProp(props, "description"),
		Image:       strProp(props, "image"),
		Color:       ColorOf(label),
	}
	if n.Name == "" {
		n.Name = strProp(props, "label")
	}
	if n.Name == "" {
		n.Name = n.ID
	}
	if n.Description == "" {
		n.Description = noDescription
	}
	return n
}

// strProp renders a property as a string; numeric ids are common in seeds.
func strProp(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// idOf reads the id of a record value; nil when the column is null.
func idOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case dbtype.Node:
		return strProp(x.Props, "id")
	}
	return fmt.Sprint(v)
}
