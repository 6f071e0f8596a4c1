package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("jobs_total", "Jobs.")
	c.Inc()
	c.Add(2)
	assert.Same(t, c, r.Counter("jobs_total", ""))
	assert.Equal(t, int64(3), c.Value())

	g := r.Gauge("open", "")
	g.Set(5)
	g.Dec()
	g.Inc()
	g.Dec()
	assert.Equal(t, int64(4), g.Value())
}

func TestWithLabels(t *testing.T) {
	assert.Equal(t, `req{route="/api",status="200"}`, WithLabels("req", "route", "/api", "status", "200"))
	assert.Equal(t, "req", WithLabels("req", "odd"))
	assert.Equal(t, "req", WithLabels("req"))
}

func TestRenderCounters(t *testing.T) {
	r := New()
	r.Counter(WithLabels("req_total", "status", "500"), "Requests.").Inc()
	r.Counter(WithLabels("req_total", "status", "200"), "").Add(2)

	out := r.Render()
	assert.Equal(t, `# HELP req_total Requests.
# TYPE req_total counter
req_total{status="200"} 2
req_total{status="500"} 1
`, out)
}

func TestRenderHistogram(t *testing.T) {
	r := New()
	h := r.Histogram(WithLabels("lat", "route", "/x"), "", []float64{1, 0.1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)
	assert.Equal(t, uint64(3), h.Count())

	out := r.Render()
	assert.Contains(t, out, "# TYPE lat histogram\n")
	assert.Contains(t, out, `lat_bucket{route="/x",le="0.1"} 1`)
	assert.Contains(t, out, `lat_bucket{route="/x",le="1"} 2`)
	assert.Contains(t, out, `lat_bucket{route="/x",le="+Inf"} 3`)
	assert.Contains(t, out, `lat_sum{route="/x"} 5.5`)
	assert.Contains(t, out, `lat_count{route="/x"} 3`)
}

func TestRenderUnlabelledHistogram(t *testing.T) {
	r := New()
	r.Histogram("plain", "", []float64{1}).Observe(0.5)
	out := r.Render()
	assert.Contains(t, out, `plain_bucket{le="1"} 1`)
	assert.Contains(t, out, "plain_count 1\n")
}

func TestServiceAndHandler(t *testing.T) {
	s := NewService(New())
	s.Imports.Inc()
	s.Request("GET", "/api/graph", 200, 0.02)
	s.Request("GET", "/api/graph", 200, 0.03)

	rec := httptest.NewRecorder()
	s.Registry().Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, string(body), "sdgraph_imports_total 1")
	assert.Contains(t, string(body), `sdgraph_http_requests_total{method="GET",route="/api/graph",status="200"} 2`)
	assert.Contains(t, string(body), `sdgraph_http_request_seconds_count{route="/api/graph"} 2`)
}

func TestConcurrentUse(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Counter("c", "").Inc()
			r.Histogram("h", "", nil).Observe(0.1)
			_ = r.Render()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), r.Counter("c", "").Value())
}
