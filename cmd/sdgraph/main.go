// Package main implements the SDGraph API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/wissalbenjira/SDG-KG/engine/indicator"
	"github.com/wissalbenjira/SDG-KG/engine/ingest"
	"github.com/wissalbenjira/SDG-KG/engine/session"
	"github.com/wissalbenjira/SDG-KG/pkg/config"
	"github.com/wissalbenjira/SDG-KG/pkg/metrics"
	"github.com/wissalbenjira/SDG-KG/pkg/natsutil"
)

// Settings holds all environment-based process settings. Connection
// credentials live in the persisted config file instead.
type Settings struct {
	Port         string
	ConfigPath   string
	DataDir      string
	UploadDir    string
	SeedPath     string
	ElementsPath string
	RedisURL     string
	NATSURL      string
	CORSOrigin   string
	LogLevel     string
}

func loadSettings() Settings {
	dataDir := envOr("DATA_DIR", "data")
	return Settings{
		Port:         envOr("PORT", "8080"),
		ConfigPath:   envOr("SDGRAPH_CONFIG", config.DefaultPath),
		DataDir:      dataDir,
		UploadDir:    envOr("UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
		SeedPath:     envOr("SEED_FILE", "sdg_initt.json"),
		ElementsPath: envOr("ELEMENTS_FILE", "sdg_initt_reformatted.json"),
		RedisURL:     os.Getenv("REDIS_URL"),
		NATSURL:      os.Getenv("NATS_URL"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	st := loadSettings()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(st.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(st, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(st Settings, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Persisted configuration ---
	cfgStore, err := config.Open(st.ConfigPath)
	if err != nil {
		return err
	}

	// --- Neo4j + LLM connections, rebuilt when the config changes ---
	conns, err := NewConnections(cfgStore.Get(), logger)
	if err != nil {
		return err
	}
	defer conns.Close(context.Background())

	// --- Import sessions: Redis when configured, memory otherwise ---
	var sessions session.Store = session.NewMemoryStore()
	if st.RedisURL != "" {
		opts, err := redis.ParseURL(st.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		sessions = session.NewRedisStore(rdb, session.DefaultTTL)
		logger.Info("import sessions in redis", "addr", opts.Addr)
	}

	// --- Optional import events ---
	var publisher ingest.Publisher
	if st.NATSURL != "" {
		nc, err := nats.Connect(st.NATSURL, nats.Name("sdgraph"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		publisher = natsutil.NewPublisher(nc)
	}

	srv := NewServer(Deps{
		Config:       cfgStore,
		Conns:        conns,
		Sessions:     sessions,
		Sources:      indicator.NewSourceCache(nil),
		SourceFiles:  indicator.DefaultSourceFiles(st.DataDir),
		SeedPath:     st.SeedPath,
		ElementsPath: st.ElementsPath,
		UploadDir:    st.UploadDir,
		Publisher:    publisher,
		Metrics:      metrics.NewService(metrics.New()),
		CORSOrigin:   st.CORSOrigin,
		Logger:       logger,
	})

	httpSrv := &http.Server{
		Addr:         ":" + st.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("sdgraph server starting", "port", st.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
