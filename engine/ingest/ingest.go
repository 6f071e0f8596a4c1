// Package ingest commits a mapped dataset to the knowledge graph: validation,
// graph write, subgraph read-back and an import-completed event.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/engine/graph"
	"github.com/wissalbenjira/SDG-KG/pkg/fn"
)

// CompletedSubject is the NATS subject for import-completed events.
const CompletedSubject = "sdgraph.import.completed"

// Job is one dataset import. Attributes is the vocabulary of the concept;
// when nil the mapping targets are not checked against it.
type Job struct {
	SessionID  string
	Import     graph.Import
	Columns    []string
	Attributes []string
}

// Outcome is a committed import and the subgraph it produced.
type Outcome struct {
	Job      Job
	Subgraph graph.View
}

// Completed is the event published after a commit.
type Completed struct {
	SessionID string    `json:"session_id,omitempty"`
	Database  string    `json:"database"`
	Concept   string    `json:"concept"`
	Mapped    int       `json:"mapped_columns"`
	Nodes     int       `json:"subgraph_nodes"`
	At        time.Time `json:"at"`
}

// GraphWriter is the part of graph.GraphStore the pipeline needs.
type GraphWriter interface {
	ImportDatabase(ctx context.Context, imp graph.Import) error
	Subgraph(ctx context.Context, dbID, indicator string) (graph.View, error)
}

// Publisher sends events. natsutil.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Deps holds the external dependencies for the import pipeline.
type Deps struct {
	Graph     GraphWriter
	Publisher Publisher // optional
	Indicator string    // subgraph root, defaults to 11.2.1
	Logger    *slog.Logger
	Now       func() time.Time
}

// Validate checks the database name, concept and mapping of a job.
var Validate fn.Stage[Job, Job] = func(_ context.Context, job Job) fn.Result[Job] {
	if err := domain.ValidateName("database", job.Import.Database.ID); err != nil {
		return fn.Err[Job](err)
	}
	if strings.TrimSpace(job.Import.Concept) == "" {
		return fn.Err[Job](domain.NewValidationError("concept", job.Import.Concept, domain.ErrUnknownConcept))
	}
	if job.Attributes != nil {
		if err := domain.ValidateMapping(job.Import.Mapping, job.Columns, job.Attributes); err != nil {
			return fn.Err[Job](err)
		}
	}
	return fn.Ok(job)
}

// NewWrite creates the stage that writes the import to the graph.
func NewWrite(g GraphWriter) fn.Stage[Job, Job] {
	return func(ctx context.Context, job Job) fn.Result[Job] {
		if err := g.ImportDatabase(ctx, job.Import); err != nil {
			return fn.Err[Job](fmt.Errorf("ingest: write: %w", err))
		}
		return fn.Ok(job)
	}
}

// NewReadBack creates the stage that loads the subgraph of the import.
func NewReadBack(g GraphWriter, indicator string) fn.Stage[Job, Outcome] {
	return func(ctx context.Context, job Job) fn.Result[Outcome] {
		view, err := g.Subgraph(ctx, job.Import.Database.ID, indicator)
		if err != nil {
			return fn.Err[Outcome](fmt.Errorf("ingest: read back: %w", err))
		}
		return fn.Ok(Outcome{Job: job, Subgraph: view})
	}
}

// NewNotify creates the stage that publishes the Completed event. The data is
// already in the graph, so a publish failure is logged and not returned.
func NewNotify(p Publisher, now func() time.Time, log *slog.Logger) fn.Stage[Outcome, Outcome] {
	return fn.TapStage(func(ctx context.Context, out Outcome) {
		if p == nil {
			return
		}
		ev := Completed{
			SessionID: out.Job.SessionID,
			Database:  out.Job.Import.Database.ID,
			Concept:   out.Job.Import.Concept,
			Mapped:    MappedColumns(out.Job.Import.Mapping),
			Nodes:     len(out.Subgraph.Nodes),
			At:        now().UTC(),
		}
		if err := p.Publish(ctx, CompletedSubject, ev); err != nil {
			log.Warn("ingest: publish failed", "error", err, "database", ev.Database)
		}
	})
}

// MappedColumns counts the mapping entries that are not Drop.
func MappedColumns(m map[string]string) int {
	n := 0
	for _, v := range m {
		if v != domain.Drop {
			n++
		}
	}
	return n
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the import pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[Job, Outcome] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	indicator := deps.Indicator
	if indicator == "" {
		indicator = domain.Indicator11_2_1
	}

	// Validate → Write → ReadBack → Notify
	validated := fn.Then(LoggedTap[Job]("validate", log), Validate)
	written := fn.Then(validated, fn.Then(LoggedTap[Job]("write", log), fn.TracedStage("ingest.write", NewWrite(deps.Graph))))
	read := fn.Then(written, fn.Then(LoggedTap[Job]("read_back", log), fn.TracedStage("ingest.read_back", NewReadBack(deps.Graph, indicator))))
	notified := fn.Then(read, NewNotify(deps.Publisher, now, log))

	return func(ctx context.Context, job Job) fn.Result[Outcome] {
		r := notified(ctx, job)
		if out, err := r.Unwrap(); err != nil {
			log.Error("ingest: import failed", "error", err, "database", job.Import.Database.ID)
		} else {
			log.Info("ingest: imported", "database", job.Import.Database.ID, "concept", job.Import.Concept,
				"mapped", MappedColumns(job.Import.Mapping), "nodes", len(out.Subgraph.Nodes))
		}
		return r
	}
}
