// Package repotest provides a scripted in-memory stand-in for Neo4j sessions.
package repotest

import (
	"context"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/wissalbenjira/SDG-KG/pkg/repo"
)

// Call is one recorded Run.
type Call struct {
	Cypher string
	Params map[string]any
}

type script struct {
	match string
	keys  []string
	rows  [][]any
	err   error
}

// Opener answers Run calls from scripts matched by cypher substring, first
// match wins. Unmatched statements return an empty result.
type Opener struct {
	mu      sync.Mutex
	scripts []script
	calls   []Call
	closed  int
}

// New returns an Opener with no scripts.
func New() *Opener { return &Opener{} }

// On scripts the rows returned for statements containing match.
func (o *Opener) On(match string, keys []string, rows ...[]any) *Opener {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scripts = append(o.scripts, script{match: match, keys: keys, rows: rows})
	return o
}

// Fail makes statements containing match return err.
func (o *Opener) Fail(match string, err error) *Opener {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scripts = append(o.scripts, script{match: match, err: err})
	return o
}

func (o *Opener) OpenSession(context.Context) repo.Session { return &session{o: o} }

// Calls returns every recorded Run in order.
func (o *Opener) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Call(nil), o.calls...)
}

// Cyphers returns the statements run so far.
func (o *Opener) Cyphers() []string {
	var out []string
	for _, c := range o.Calls() {
		out = append(out, c.Cypher)
	}
	return out
}

// Closed reports how many sessions were closed.
func (o *Opener) Closed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type session struct{ o *Opener }

func (s *session) Run(_ context.Context, cypher string, params map[string]any) (repo.Result, error) {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	s.o.calls = append(s.o.calls, Call{Cypher: cypher, Params: params})
	for _, sc := range s.o.scripts {
		if !strings.Contains(cypher, sc.match) {
			continue
		}
		if sc.err != nil {
			return nil, sc.err
		}
		recs := make([]*neo4j.Record, 0, len(sc.rows))
		for _, row := range sc.rows {
			recs = append(recs, &neo4j.Record{Keys: sc.keys, Values: row})
		}
		return &result{records: recs}, nil
	}
	return &result{}, nil
}

func (s *session) Close(context.Context) error {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	s.o.closed++
	return nil
}

type result struct {
	records []*neo4j.Record
	idx     int
}

func (r *result) Next(context.Context) bool {
	if r.idx < len(r.records) {
		r.idx++
		return true
	}
	return false
}

func (r *result) Record() *neo4j.Record { return r.records[r.idx-1] }
