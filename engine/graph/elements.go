package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/wissalbenjira/SDG-KG/pkg/fn"
)

// ElementData is the data block of a cytoscape element.
type ElementData struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// Element wraps ElementData the way graph widgets expect.
type Element struct {
	Data ElementData `json:"data"`
}

// Elements is a cytoscape-style node and edge listing.
type Elements struct {
	Nodes []Element `json:"nodes"`
	Edges []Element `json:"edges"`
}

// ToElements converts a view. Edge ids are "e1", "e2", … in view order.
func (v View) ToElements() Elements {
	els := Elements{Nodes: []Element{}, Edges: []Element{}}
	for _, n := range v.Nodes {
		els.Nodes = append(els.Nodes, Element{Data: ElementData{ID: n.ID, Label: n.Label, Name: n.Name}})
	}
	for i, e := range v.Edges {
		els.Edges = append(els.Edges, Element{Data: ElementData{
			ID: fmt.Sprintf("e%d", i+1), Label: e.Type, Source: e.Source, Target: e.Target,
		}})
	}
	return els
}

// ReadElements loads an elements file.
func ReadElements(path string) (Elements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Elements{}, fmt.Errorf("graph: elements: %w", err)
	}
	var els Elements
	if err := json.Unmarshal(data, &els); err != nil {
		return Elements{}, fmt.Errorf("graph: elements %s: %w", path, err)
	}
	return els, nil
}

// Labels returns the distinct node labels, sorted.
func (els Elements) Labels() []string {
	out := fn.Unique(fn.Map(els.Nodes, func(e Element) string { return e.Data.Label }))
	sort.Strings(out)
	return out
}

// Filter keeps nodes with a label in labels and edges between kept nodes.
func (els Elements) Filter(labels []string) Elements {
	keep := fn.Set(labels)
	out := Elements{Nodes: fn.Filter(els.Nodes, func(e Element) bool { return keep[e.Data.Label] })}
	visible := fn.Set(fn.Map(out.Nodes, func(e Element) string { return e.Data.ID }))
	out.Edges = fn.Filter(els.Edges, func(e Element) bool { return visible[e.Data.Source] && visible[e.Data.Target] })
	if out.Nodes == nil {
		out.Nodes = []Element{}
	}
	if out.Edges == nil {
		out.Edges = []Element{}
	}
	return out
}
