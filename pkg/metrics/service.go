package metrics

import "strconv"

// Service bundles the instruments of the sdgraph service.
type Service struct {
	reg *Registry

	Imports          *Counter
	ImportFailures   *Counter
	Suggestions      *Counter
	LLMFailures      *Counter
	IndicatorRuns    *Counter
	IndicatorLatency *Histogram
	GraphResets      *Counter
	OpenSessions     *Gauge
}

// NewService registers the service instruments on r.
func NewService(r *Registry) *Service {
	return &Service{
		reg:              r,
		Imports:          r.Counter("sdgraph_imports_total", "Datasets committed to the graph."),
		ImportFailures:   r.Counter("sdgraph_import_failures_total", "Dataset imports that failed."),
		Suggestions:      r.Counter("sdgraph_mapping_suggestions_total", "Column mappings suggested by the LLM."),
		LLMFailures:      r.Counter("sdgraph_llm_failures_total", "Failed LLM calls."),
		IndicatorRuns:    r.Counter("sdgraph_indicator_runs_total", "Indicator computations."),
		IndicatorLatency: r.Histogram("sdgraph_indicator_seconds", "Indicator computation latency.", nil),
		GraphResets:      r.Counter("sdgraph_graph_resets_total", "Graph reinitialisations from the seed file."),
		OpenSessions:     r.Gauge("sdgraph_import_sessions", "Import sessions created and not deleted."),
	}
}

// Request records one HTTP request by route pattern and status.
func (s *Service) Request(method, route string, status int, seconds float64) {
	s.reg.Counter(WithLabels("sdgraph_http_requests_total", "method", method, "route", route, "status", strconv.Itoa(status)),
		"HTTP requests by route and status.").Inc()
	s.reg.Histogram(WithLabels("sdgraph_http_request_seconds", "route", route), "HTTP request latency.", nil).Observe(seconds)
}

// Registry returns the registry the instruments live in.
func (s *Service) Registry() *Registry { return s.reg }
