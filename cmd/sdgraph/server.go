package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/engine/graph"
	"github.com/wissalbenjira/SDG-KG/engine/indicator"
	"github.com/wissalbenjira/SDG-KG/engine/ingest"
	"github.com/wissalbenjira/SDG-KG/engine/session"
	"github.com/wissalbenjira/SDG-KG/pkg/config"
	"github.com/wissalbenjira/SDG-KG/pkg/llm"
	"github.com/wissalbenjira/SDG-KG/pkg/metrics"
	"github.com/wissalbenjira/SDG-KG/pkg/mid"
	"github.com/wissalbenjira/SDG-KG/pkg/repo"
	"github.com/wissalbenjira/SDG-KG/pkg/resilience"
	"github.com/wissalbenjira/SDG-KG/pkg/tabular"
)

// Backends are the clients that follow the persisted config.
type Backends interface {
	Graph() *graph.GraphStore
	LLM() *llm.Client
	Apply(ctx context.Context, cfg config.Config) error
}

// Deps holds everything the handlers use.
type Deps struct {
	Config       *config.Store
	Conns        Backends
	Sessions     session.Store
	Sources      *indicator.SourceCache
	SourceFiles  indicator.SourceFiles
	SeedPath     string
	ElementsPath string
	UploadDir    string
	Publisher    ingest.Publisher // optional
	Metrics      *metrics.Service
	CORSOrigin   string
	Logger       *slog.Logger

	// VerifyNeo4j checks a connection; defaults to a real driver handshake.
	VerifyNeo4j func(ctx context.Context, n config.Neo4j) error
}

// Server serves the JSON API.
type Server struct {
	Deps
}

// NewServer fills defaults in deps.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewService(metrics.New())
	}
	if d.Sources == nil {
		d.Sources = indicator.NewSourceCache(nil)
	}
	if d.VerifyNeo4j == nil {
		d.VerifyNeo4j = VerifyNeo4j
	}
	if d.CORSOrigin == "" {
		d.CORSOrigin = "*"
	}
	return &Server{Deps: d}
}

// llmRateLimit bounds the endpoints that call the LLM, per client IP.
var llmRateLimit = struct {
	Requests int
	Window   time.Duration
}{Requests: 10, Window: time.Minute}

func rateLimitExceeded(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(int(llmRateLimit.Window.Seconds())))
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	limitLLM := httprate.Limit(
		llmRateLimit.Requests,
		llmRateLimit.Window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)

	r := chi.NewRouter()
	r.Use(
		mid.RequestID(),
		mid.OTel("sdgraph"),
		mid.Metrics(s.Metrics),
		mid.Logger(s.Logger),
		mid.Recover(s.Logger),
		mid.CORS(s.CORSOrigin),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.Get("/api/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", s.Metrics.Registry().Handler())

	r.Route("/api/config", func(r chi.Router) {
		r.Get("/", s.handleGetConfig)
		r.Put("/", s.handlePutConfig)
		r.Post("/test/neo4j", s.handleTestNeo4j)
		r.With(limitLLM).Post("/test/llm", s.handleTestLLM)
	})

	r.Route("/api/graph", func(r chi.Router) {
		r.Get("/", s.handleGraph)
		r.Get("/preview", s.handlePreview)
		r.Post("/reset", s.handleReset)
		r.Get("/stats", s.handleStats)
		r.Get("/concepts", s.handleConcepts)
		r.Get("/concepts/{concept}/attributes", s.handleAttributes)
		r.Get("/databases", s.handleDatabases)
		r.Delete("/databases/{name}", s.handleDeleteDatabase)
	})

	r.Route("/api/import/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/database", s.handleSetDatabase)
			r.Post("/files", s.handleUpload)
			r.With(limitLLM).Post("/suggest", s.handleSuggest)
			r.Put("/mapping", s.handleSetMapping)
			r.Post("/commit", s.handleCommit)
			r.Post("/reset", s.handleResetSession)
		})
	})

	r.Get("/api/usecases", handleUseCases)
	r.Get("/api/usecases/{id}/relevance", handleUseCaseRelevance)
	r.Post("/api/relevance", handleRelevance)

	r.Route("/api/indicator", func(r chi.Router) {
		r.Get("/options", s.handleIndicatorOptions)
		r.Post("/units", s.handleIndicatorUnits)
		r.Post("/", s.handleIndicator)
		r.Post("/map", s.handleIndicatorMap)
	})
	return r
}

// --- Helpers ---

type errorBody struct {
	Error string `json:"error"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "", errors.Join(domain.ErrInvalidParams, err))
	}
	return nil
}

// statusOf maps an error to the HTTP status clients see.
func statusOf(err error) int {
	var mc *tabular.MissingColumnsError
	switch {
	case errors.Is(err, domain.ErrDatabaseExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotFound), errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSchemaMismatch), errors.As(err, &mc):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidParams), errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidMapping), errors.Is(err, domain.ErrInvalidWeights),
		errors.Is(err, domain.ErrUnknownConcept),
		errors.Is(err, tabular.ErrEncoding), errors.Is(err, tabular.ErrSeparator):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEmptyResponse), errors.Is(err, domain.ErrBadResponse), errors.Is(err, llm.ErrEmptyResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		s.Logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", mid.GetRequestID(r.Context()))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// labelsParam splits a comma separated query parameter, dropping blanks.
func labelsParam(r *http.Request, name string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(name), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
