package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/engine/graph"
	"github.com/wissalbenjira/SDG-KG/engine/indicator"
	"github.com/wissalbenjira/SDG-KG/engine/session"
	"github.com/wissalbenjira/SDG-KG/pkg/config"
	"github.com/wissalbenjira/SDG-KG/pkg/llm"
	"github.com/wissalbenjira/SDG-KG/pkg/repo"
	"github.com/wissalbenjira/SDG-KG/pkg/repo/repotest"
	"github.com/wissalbenjira/SDG-KG/pkg/resilience"
	"github.com/wissalbenjira/SDG-KG/pkg/tabular"
)

type fakeBackends struct {
	graph   *graph.GraphStore
	llm     *llm.Client
	applied []config.Config
}

func (f *fakeBackends) Graph() *graph.GraphStore { return f.graph }
func (f *fakeBackends) LLM() *llm.Client         { return f.llm }
func (f *fakeBackends) Apply(_ context.Context, cfg config.Config) error {
	f.applied = append(f.applied, cfg)
	return nil
}

type harness struct {
	srv      *Server
	handler  http.Handler
	backends *fakeBackends
	opener   *repotest.Opener
}

func newHarness(t *testing.T, opener *repotest.Opener, llmReply string) *harness {
	t.Helper()
	chat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		b, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": llmReply}}}})
		w.Write(b)
	}))
	t.Cleanup(chat.Close)

	cfgStore, err := config.Open(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	b := &fakeBackends{
		graph: graph.New(opener),
		llm:   llm.New(llm.Config{APIType: llm.APITypeOpenAI, APIKey: "sk-test", APIBase: chat.URL, Model: "gpt-4o-mini"}),
	}
	srv := NewServer(Deps{
		Config:   cfgStore,
		Conns:    b,
		Sessions: session.NewMemoryStore(),
		Sources: indicator.NewSourceCache(func(context.Context, indicator.SourceFiles) (*indicator.Sources, error) {
			return indicatorSources(), nil
		}),
		UploadDir: t.TempDir(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		VerifyNeo4j: func(_ context.Context, n config.Neo4j) error {
			if n.Password != "password" {
				return errors.New("unauthorized")
			}
			return nil
		},
	})
	return &harness{srv: srv, handler: srv.Routes(), backends: b, opener: opener}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func node(label string, props map[string]any) dbtype.Node {
	return dbtype.Node{Labels: []string{label}, Props: props}
}

func indicatorSources() *indicator.Sources {
	return &indicator.Sources{
		Population: []indicator.PopulationRecord{
			{IrisID: "a1", CommuneID: "92002", Year: 2019, Mode: "TC", Value: 10},
			{IrisID: "a2", CommuneID: "92002", Year: 2019, Mode: "TC", Value: 30},
			{IrisID: "b1", CommuneID: "92007", Year: 2019, Mode: "TC", Value: 60},
		},
		Units: []indicator.Unit{
			{ID: "92002", Name: "Antony", Geometry: orb.Point{2.29, 48.75}},
			{ID: "92007", Name: "Bagneux", Geometry: orb.Point{2.31, 48.79}},
		},
		Stops:   []indicator.TransportStop{{ID: "s", Class: "tram_stop", Year: 2019}},
		StopIDs: []string{"s"},
		Distances: []indicator.DistanceLink{
			{PopulationID: "92002", TransportID: "s", Distance: 80},
			{PopulationID: "92007", TransportID: "s", Distance: 300},
		},
	}
}

func TestHealthAndNotFound(t *testing.T) {
	h := newHarness(t, repotest.New(), "")

	rec := h.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = h.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[errorBody](t, rec).Error)
}

func TestConfigMasksSecretsAndKeepsThem(t *testing.T) {
	h := newHarness(t, repotest.New(), "")

	got := decode[config.Config](t, h.do(t, http.MethodGet, "/api/config/", nil))
	assert.Equal(t, "bolt://localhost:7687", got.Neo4j.URI)
	assert.Equal(t, "********", got.Neo4j.Password)

	in := config.Config{
		Neo4j:  config.Neo4j{URI: "neo4j://graph:7687", Username: "neo4j"},
		OpenAI: config.OpenAI{APIType: "openai", APIKey: "sk-new", Engine: "gpt-4o-mini"},
	}
	rec := h.do(t, http.MethodPut, "/api/config/", in)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[config.Config](t, rec)
	assert.Equal(t, "********", out.OpenAI.APIKey)

	stored := h.srv.Config.Get()
	assert.Equal(t, "password", stored.Neo4j.Password)
	assert.Equal(t, "sk-new", stored.OpenAI.APIKey)
	require.Len(t, h.backends.applied, 1)
	assert.Equal(t, "neo4j://graph:7687", h.backends.applied[0].Neo4j.URI)
}

func TestConfigTestNeo4j(t *testing.T) {
	h := newHarness(t, repotest.New(), "")

	rec := h.do(t, http.MethodPost, "/api/config/test/neo4j", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[testResult](t, rec).OK)

	rec = h.do(t, http.MethodPost, "/api/config/test/neo4j", config.Config{Neo4j: config.Neo4j{URI: "bolt://x", Password: "wrong"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "unauthorized", decode[testResult](t, rec).Error)
}

func TestGraphConceptsAndAttributes(t *testing.T) {
	o := repotest.New().
		On("HAS_ATTRIBUTE", []string{"id"}, []any{"Age"}, []any{"Sex"}).
		On("MATCH (c:Concept) RETURN", []string{"id"}, []any{"Population"})
	h := newHarness(t, o, "")

	rec := h.do(t, http.MethodGet, "/api/graph/concepts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Population"}, decode[map[string][]string](t, rec)["concepts"])

	rec = h.do(t, http.MethodGet, "/api/graph/concepts/Population/attributes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Age", "Sex"}, decode[map[string][]string](t, rec)["attributes"])
	assert.Equal(t, "Population", o.Calls()[1].Params["concept"])
}

func TestGraphViewFiltersByType(t *testing.T) {
	o := repotest.New().
		On("MATCH (n:Goal)", []string{"n"}, []any{node("Goal", map[string]any{"id": "11"})}).
		On("MATCH (n:Target)", []string{"n"}, []any{node("Target", map[string]any{"id": "11.2"})})
	h := newHarness(t, o, "")

	rec := h.do(t, http.MethodGet, "/api/graph/?types=Goal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[GraphResponse](t, rec)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "11", got.Nodes[0].ID)
	assert.NotEmpty(t, got.Colors)
}

func TestGraphFailureIsJSON500(t *testing.T) {
	h := newHarness(t, repotest.New().Fail("MATCH (c:Concept)", errors.New("connection refused")), "")
	rec := h.do(t, http.MethodGet, "/api/graph/concepts", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "connection refused")
}

func chain(col, attr string) []any {
	return []any{
		node("Goal", map[string]any{"id": "11"}),
		node("Target", map[string]any{"id": "11.2"}),
		node("Indicator", map[string]any{"id": "11.2.1"}),
		node("Concept", map[string]any{"id": "Population"}),
		node("Database", map[string]any{"id": "pop92"}),
		node("Column", map[string]any{"id": col}),
		node("Attribute", map[string]any{"id": attr}),
	}
}

func importOpener() *repotest.Opener {
	return repotest.New().
		On("MATCH (g:Goal)", []string{"g", "t", "i", "c", "db", "col", "attr"}, chain("VALEUR", "Count")).
		On("HAS_ATTRIBUTE", []string{"id"}, []any{"Count"}, []any{"Zone"}).
		On("RETURN c LIMIT 1", []string{"c"}, []any{node("Concept", map[string]any{"id": "Population"})}).
		On("MERGE (n:Database", []string{"n"}, []any{node("Database", map[string]any{"id": "pop92"})})
}

func (h *harness) upload(t *testing.T, id, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("csv", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("separator", ","))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/sessions/"+id+"/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestImportSessionFlow(t *testing.T) {
	h := newHarness(t, importOpener(), "```json\n{\"CODE_IRIS\": \"Zone\", \"VALEUR\": \"Count\", \"NOTE\": \"Mood\"}\n```")

	rec := h.do(t, http.MethodPost, "/api/import/sessions/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[SessionResponse](t, rec).ID
	require.NotEmpty(t, id)

	rec = h.do(t, http.MethodPut, "/api/import/sessions/"+id+"/database", databaseRequest{Name: "pop92", Concept: "Population"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.upload(t, id, "pop.csv", "CODE_IRIS,VALEUR,NOTE\n920020101,12,x\n920020102,30,y\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[SessionResponse](t, rec)
	assert.Equal(t, []string{"CODE_IRIS", "VALEUR", "NOTE"}, up.Columns)
	assert.Equal(t, domain.Drop, up.Mapping["VALEUR"])
	assert.Len(t, up.Preview, 2)

	rec = h.do(t, http.MethodPost, "/api/import/sessions/"+id+"/suggest", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sug := decode[SessionResponse](t, rec)
	assert.True(t, sug.Suggested)
	assert.Equal(t, map[string]string{"CODE_IRIS": "Zone", "VALEUR": "Count", "NOTE": domain.Drop}, sug.Mapping)

	rec = h.do(t, http.MethodPut, "/api/import/sessions/"+id+"/mapping", mappingRequest{Mapping: map[string]string{"CODE_IRIS": domain.Drop}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{"CODE_IRIS": domain.Drop, "VALEUR": "Count", "NOTE": domain.Drop}, decode[SessionResponse](t, rec).Mapping)

	rec = h.do(t, http.MethodPut, "/api/import/sessions/"+id+"/mapping", mappingRequest{Mapping: map[string]string{"VALEUR": "Mood"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/import/sessions/"+id+"/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[CommitResponse](t, rec)
	assert.True(t, done.Session.Done)
	assert.Len(t, done.Subgraph.Nodes, 7)
	assert.Equal(t, int64(1), h.srv.Metrics.Imports.Value())

	var mapped []string
	for _, c := range h.opener.Calls() {
		if col, ok := c.Params["column"].(string); ok {
			mapped = append(mapped, col)
		}
	}
	assert.Equal(t, []string{"VALEUR"}, mapped)

	rec = h.do(t, http.MethodDelete, "/api/import/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/import/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommitExistingDatabaseConflicts(t *testing.T) {
	o := repotest.New().
		On("MATCH (n:Database {id: $id})", []string{"n"}, []any{node("Database", map[string]any{"id": "pop92"})}).
		On("HAS_ATTRIBUTE", []string{"id"}, []any{"Count"})
	h := newHarness(t, o, "")

	id := decode[SessionResponse](t, h.do(t, http.MethodPost, "/api/import/sessions/", nil)).ID
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/api/import/sessions/"+id+"/database", databaseRequest{Name: "pop92", Concept: "Population"}).Code)
	require.Equal(t, http.StatusOK, h.upload(t, id, "pop.csv", "VALEUR\n1\n").Code)

	rec := h.do(t, http.MethodPost, "/api/import/sessions/"+id+"/commit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int64(1), h.srv.Metrics.ImportFailures.Value())
}

func TestSuggestRequiresDatabaseAndFile(t *testing.T) {
	h := newHarness(t, importOpener(), "{}")
	id := decode[SessionResponse](t, h.do(t, http.MethodPost, "/api/import/sessions/", nil)).ID

	rec := h.do(t, http.MethodPost, "/api/import/sessions/"+id+"/suggest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestEmptyResponse(t *testing.T) {
	h := newHarness(t, importOpener(), "   ")
	id := decode[SessionResponse](t, h.do(t, http.MethodPost, "/api/import/sessions/", nil)).ID
	h.do(t, http.MethodPut, "/api/import/sessions/"+id+"/database", databaseRequest{Name: "pop92", Concept: "Population"})
	require.Equal(t, http.StatusOK, h.upload(t, id, "pop.csv", "VALEUR\n1\n").Code)

	rec := h.do(t, http.MethodPost, "/api/import/sessions/"+id+"/suggest", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, int64(1), h.srv.Metrics.LLMFailures.Value())
}

func TestUseCases(t *testing.T) {
	h := newHarness(t, repotest.New(), "")

	rec := h.do(t, http.MethodGet, "/api/usecases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "women-transport-hauts-de-seine")

	rec = h.do(t, http.MethodGet, "/api/usecases/women-transport-hauts-de-seine/relevance", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[RankingResponse](t, rec)
	require.Len(t, got.Ranking, 3)
	assert.Equal(t, "INSEE", got.Ranking[0].Dataset)
	assert.Equal(t, fmt.Sprintf("INSEE (%.2f)", got.Ranking[0].Final), got.Ranking[0].Label)

	rec = h.do(t, http.MethodGet, "/api/usecases/elderly-healthcare-paris/relevance", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/usecases/unknown/relevance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRelevanceCustomWeights(t *testing.T) {
	h := newHarness(t, repotest.New(), "")

	body := map[string]any{
		"query":   map[string]string{"space": "92", "time": "2017-2024", "context": "Women"},
		"weights": map[string]float64{"space": 1},
	}
	rec := h.do(t, http.MethodPost, "/api/relevance", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[RankingResponse](t, rec)
	assert.Equal(t, 1.0, got.Ranking[0].Final)

	rec = h.do(t, http.MethodPost, "/api/relevance", map[string]any{"weights": map[string]float64{"space": 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body["weights"] = map[string]float64{}
	rec = h.do(t, http.MethodPost, "/api/relevance", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndicatorEndpoints(t *testing.T) {
	h := newHarness(t, repotest.New(), "")

	rec := h.do(t, http.MethodGet, "/api/indicator/options", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[OptionsResponse](t, rec)
	assert.Equal(t, []int{2019}, opts.Years)
	assert.Equal(t, indicator.DefaultThreshold, opts.Threshold.Default)

	rec = h.do(t, http.MethodPost, "/api/indicator/units", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	units := decode[map[string][]indicator.UnitOption](t, rec)["units"]
	require.Len(t, units, 2)
	assert.Equal(t, "Antony (92002)", units[0].Label)

	rec = h.do(t, http.MethodPost, "/api/indicator/", map[string]any{"unit_ids": []string{"92002", "92007"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[IndicatorResponse](t, rec)
	assert.Equal(t, 0.5, res.Headline)
	require.Len(t, res.Series, 1)
	assert.Equal(t, 0.4, res.Series[0].WeightedProportion)
	assert.Equal(t, int64(1), h.srv.Metrics.IndicatorRuns.Value())

	rec = h.do(t, http.MethodPost, "/api/indicator/", map[string]any{"unit_ids": []string{}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[IndicatorResponse](t, rec).NoData)

	rec = h.do(t, http.MethodPost, "/api/indicator/", map[string]any{"level": "REGION"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/indicator/map", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	layer := decode[MapResponse](t, rec)
	assert.Len(t, layer.Layer.Features, 2)
	assert.Equal(t, 2, layer.Stats.Features)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("graph: %w", domain.ErrDatabaseExists), http.StatusConflict},
		{session.ErrNotFound, http.StatusNotFound},
		{repo.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("indicator: %w", domain.ErrSchemaMismatch), http.StatusUnprocessableEntity},
		{&tabular.MissingColumnsError{Source: "x", Missing: []string{"a"}}, http.StatusUnprocessableEntity},
		{domain.NewValidationError("level", "X", domain.ErrInvalidParams), http.StatusBadRequest},
		{llm.ErrNotConfigured, http.StatusServiceUnavailable},
		{resilience.ErrCircuitOpen, http.StatusServiceUnavailable},
		{domain.ErrEmptyResponse, http.StatusBadGateway},
		{fmt.Errorf("mapping: %w", domain.ErrBadResponse), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}
