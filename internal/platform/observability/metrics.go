package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "leaf_diagnosis"

var (
	pipelineOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_outcomes_total",
		Help:      "Pipeline runs by terminal state or failure kind.",
	}, []string{"outcome"})

	oracleCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_calls_total",
		Help:      "Model server calls by model and result.",
	}, []string{"model", "result"})

	oracleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "oracle_call_seconds",
		Help:      "Model server call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"model"})

	advisorFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "advisor_fallbacks_total",
		Help:      "Treatment advice requests answered with the fallback text.",
	}, []string{"reason"})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObservePipeline counts one finished pipeline run.
func ObservePipeline(outcome string) {
	datapoint("pipeline_outcomes_total", 1, "outcome", outcome)
	if !Enabled() {
		return
	}
	pipelineOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveOracle counts one model call and its latency.
func ObserveOracle(model string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	datapoint("oracle_call_seconds", elapsed.Seconds(), "model", model, "result", result)
	if !Enabled() {
		return
	}
	oracleCalls.WithLabelValues(model, result).Inc()
	oracleLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

func ObserveAdvisorFallback(reason string) {
	datapoint("advisor_fallbacks_total", 1, "reason", reason)
	if !Enabled() {
		return
	}
	advisorFallbacks.WithLabelValues(reason).Inc()
}

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if !Enabled() {
		return
	}
	httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
