// Package graph stores and queries the SDG knowledge graph in Neo4j: goals,
// targets, indicators, concepts and their attributes, plus the databases and
// columns imported against them.
package graph

// Node labels.
const (
	LabelGoal      = "Goal"
	LabelTarget    = "Target"
	LabelIndicator = "Indicator"
	LabelConcept   = "Concept"
	LabelAttribute = "Attribute"
	LabelColumn    = "Column"
	LabelDatabase  = "Database"
)

// Relationship types.
const (
	RelHasTarget    = "HAS_TARGET"
	RelHasIndicator = "HAS_INDICATOR"
	RelHasConcept   = "HAS_CONCEPT"
	RelHasInstance  = "HAS_INSTANCE"
	RelHasColumn    = "HAS_COLUMN"
	RelIsMappedTo   = "IS_MAPPED_TO"
	RelHasAttribute = "HAS_ATTRIBUTE"
)

// Labels lists every node label in display order.
var Labels = []string{LabelGoal, LabelTarget, LabelIndicator, LabelConcept, LabelAttribute, LabelColumn, LabelDatabase}

// DefaultViewLabels are shown when no filter is given.
var DefaultViewLabels = []string{LabelGoal, LabelTarget, LabelIndicator}

// LabelColors maps labels to their display colour.
var LabelColors = map[string]string{
	LabelGoal:      "#f16667",
	LabelTarget:    "#f79767",
	LabelIndicator: "#ffc454",
	LabelConcept:   "#8dcc93",
	LabelAttribute: "#4c8eda",
	LabelColumn:    "#a5abb6",
	LabelDatabase:  "#c990c0",
}

// fallbackColor is used for labels outside LabelColors.
const fallbackColor = "#888888"

// ColorOf returns the display colour of label.
func ColorOf(label string) string {
	if c, ok := LabelColors[label]; ok {
		return c
	}
	return fallbackColor
}

const noDescription = "No description available."

// Node is a graph node as shown to clients.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Color       string `json:"color"`
}

// Title is the hover text: "Label[id:X]" followed by the description.
func (n Node) Title() string {
	return n.Label + "[id:" + n.ID + "]\n" + n.Description
}

// Edge is a directed relationship between two node ids.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// View is a set of nodes and the edges between them.
type View struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Database is an imported dataset node.
type Database struct {
	ID           string `json:"id"`
	CSVPath      string `json:"csv_filepath"`
	GeoJSONPath  string `json:"geojson_filepath"`
	CSVEncoding  string `json:"csv_encoding"`
	CSVSeparator string `json:"csv_separator"`
}

// Import describes a dataset to attach under a concept. Mapping goes from
// column name to attribute id or "Drop".
type Import struct {
	Database Database
	Concept  string
	Mapping  map[string]string
}
