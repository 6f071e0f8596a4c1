package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/wissalbenjira/SDG-KG/engine/graph"
	"github.com/wissalbenjira/SDG-KG/pkg/config"
	"github.com/wissalbenjira/SDG-KG/pkg/llm"
)

const (
	verifyTimeout = 10 * time.Second
	// drainDelay is how long a replaced driver stays open for requests that
	// fetched it before the swap.
	drainDelay = 2 * time.Minute
)

// Connections holds the graph and LLM clients built from the current
// config. Apply swaps them when the config is saved.
type Connections struct {
	mu      sync.RWMutex
	driver  neo4j.DriverWithContext
	graph   *graph.GraphStore
	llm     *llm.Client
	logger  *slog.Logger
	drain   time.Duration
	retired map[neo4j.DriverWithContext]*time.Timer
}

// NewConnections builds clients for cfg. The driver connects lazily, so an
// unreachable Neo4j does not prevent startup.
func NewConnections(cfg config.Config, logger *slog.Logger) (*Connections, error) {
	c := &Connections{logger: logger, drain: drainDelay}
	if err := c.Apply(context.Background(), cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func newDriver(n config.Neo4j) (neo4j.DriverWithContext, error) {
	d, err := neo4j.NewDriverWithContext(n.URI, neo4j.BasicAuth(n.Username, n.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return d, nil
}

// Apply replaces the clients with ones built from cfg. The previous driver
// is closed once the drain delay has passed.
func (c *Connections) Apply(ctx context.Context, cfg config.Config) error {
	driver, err := newDriver(cfg.Neo4j)
	if err != nil {
		return err
	}
	client := llm.New(cfg.LLM(), llm.WithLogger(c.logger))

	c.mu.Lock()
	if c.driver != nil {
		c.retire(c.driver)
	}
	c.driver = driver
	c.graph = graph.NewFromDriver(driver)
	c.llm = client
	c.mu.Unlock()

	c.logger.Info("connections configured", "neo4j", cfg.Neo4j.URI, "llm_configured", client.Configured())
	return nil
}

// retire schedules d to be closed after the drain delay. Callers hold mu.
func (c *Connections) retire(d neo4j.DriverWithContext) {
	if c.retired == nil {
		c.retired = make(map[neo4j.DriverWithContext]*time.Timer)
	}
	c.retired[d] = time.AfterFunc(c.drain, func() {
		c.mu.Lock()
		delete(c.retired, d)
		c.mu.Unlock()
		c.closeDriver(d)
	})
}

func (c *Connections) closeDriver(d neo4j.DriverWithContext) {
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		c.logger.Warn("neo4j: closing previous driver", "err", err)
	}
}

// Graph returns the current graph store.
func (c *Connections) Graph() *graph.GraphStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph
}

// LLM returns the current chat client.
func (c *Connections) LLM() *llm.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llm
}

// Close releases the current driver and any still draining.
func (c *Connections) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for d, t := range c.retired {
		if t.Stop() {
			_ = d.Close(ctx)
		}
	}
	clear(c.retired)
	if c.driver != nil {
		_ = c.driver.Close(ctx)
		c.driver = nil
	}
}

// VerifyNeo4j opens a throwaway driver for n and checks connectivity.
func VerifyNeo4j(ctx context.Context, n config.Neo4j) error {
	d, err := newDriver(n)
	if err != nil {
		return err
	}
	defer d.Close(ctx)
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	if err := d.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j connectivity: %w", err)
	}
	return nil
}
