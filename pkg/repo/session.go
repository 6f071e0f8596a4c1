package repo

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the part of a neo4j result the stores read from.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// Session is the part of a neo4j session the stores write through.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// Opener hands out sessions. Tests swap in scripted sessions.
type Opener interface {
	OpenSession(ctx context.Context) Session
}

// DriverOpener opens auto-commit sessions on a live driver.
type DriverOpener struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// NewDriverOpener wraps driver; an empty database selects the server default.
func NewDriverOpener(driver neo4j.DriverWithContext, database string) *DriverOpener {
	return &DriverOpener{Driver: driver, Database: database}
}

func (o *DriverOpener) OpenSession(ctx context.Context) Session {
	return &sessionAdapter{sess: o.Driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: o.Database})}
}

// sessionAdapter adapts neo4j.SessionWithContext to Session.
type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// Collect drains a result into its records.
func Collect(ctx context.Context, res Result) []*neo4j.Record {
	var out []*neo4j.Record
	for res.Next(ctx) {
		out = append(out, res.Record())
	}
	return out
}
