package research

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the controller's counters. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry bookkeeping.
type Metrics struct {
	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec
	searches    prometheus.Counter
	fetches     prometheus.Counter
	fetchFails  prometheus.Counter
	runs        *prometheus.CounterVec
}

// NewMetrics creates and registers the research counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepsearch_llm_requests_total",
			Help: "LLM calls issued, by phase.",
		}, []string{"phase"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepsearch_llm_tokens_total",
			Help: "Tokens consumed, by phase and direction.",
		}, []string{"phase", "direction"}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepsearch_web_searches_total",
			Help: "Web search queries issued.",
		}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepsearch_web_fetches_total",
			Help: "Page extractions attempted.",
		}),
		fetchFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepsearch_web_fetch_failures_total",
			Help: "Page extractions that failed.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepsearch_runs_total",
			Help: "Completed research runs, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.llmRequests, m.llmTokens, m.searches, m.fetches, m.fetchFails, m.runs)
	return m
}

func (m *Metrics) observeLLM(phase string, promptTokens, completionTokens int64) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(phase).Inc()
	m.llmTokens.WithLabelValues(phase, "prompt").Add(float64(promptTokens))
	m.llmTokens.WithLabelValues(phase, "completion").Add(float64(completionTokens))
}

func (m *Metrics) observeSearch() {
	if m == nil {
		return
	}
	m.searches.Inc()
}

func (m *Metrics) observeFetch(failed bool) {
	if m == nil {
		return
	}
	m.fetches.Inc()
	if failed {
		m.fetchFails.Inc()
	}
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}
