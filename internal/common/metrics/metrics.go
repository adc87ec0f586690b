// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_tool_calls_total",
			Help: "Total number of tool calls by outcome",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_tool_call_duration_seconds",
			Help:    "Duration of tool calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	ContractViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_contract_violations_total",
			Help: "Payloads rejected by the tool contracts",
		},
		[]string{"tool", "direction", "code"},
	)

	DataLoaderCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_data_loader_cache_total",
			Help: "Data loader cache lookups by result",
		},
		[]string{"result"},
	)

	ContextStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_context_store_operations_total",
			Help: "Context store operations by action and result",
		},
		[]string{"action", "result"},
	)

	ToolJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcp_tool_jobs_active",
			Help: "Number of in-flight tool calls",
		},
		[]string{"tool"},
	)
)

const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
	StatusPartial  = "partial"
)

// TrackCall marks a tool call in flight. The returned func records the outcome.
func TrackCall(tool string) func(status string) {
	start := time.Now()
	ToolJobsActive.WithLabelValues(tool).Inc()
	return func(status string) {
		ToolJobsActive.WithLabelValues(tool).Dec()
		ToolCalls.WithLabelValues(tool, status).Inc()
		ToolCallDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	}
}

// RecordViolations counts one violation per code.
func RecordViolations(tool, direction string, codes []string) {
	for _, code := range codes {
		ContractViolations.WithLabelValues(tool, direction, code).Inc()
	}
}
