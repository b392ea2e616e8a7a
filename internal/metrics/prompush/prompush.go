// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Batch loads are short-lived processes, so collected metrics are pushed to
// a Pushgateway on Flush instead of being exposed on a scrape endpoint. All
// Prometheus dependencies stay inside this package.
package prompush

import (
	"fmt"

	"compliancedb/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	grouping   [][2]string
	reg        *prometheus.Registry

	stepCounter     *prometheus.CounterVec // loader_step_total
	stepDuration    *prometheus.SummaryVec // loader_step_duration_seconds
	rowCounter      *prometheus.CounterVec // loader_rows_total
	batchCounter    *prometheus.CounterVec // loader_batches_total
	fallbackCounter *prometheus.CounterVec // loader_bulk_fallbacks_total
}

// NewBackend constructs a Pushgateway backend. An empty jobName defaults to
// "loader".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "loader"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Load step executions, partitioned by table, step and status.",
		},
		[]string{"table", "step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of load steps in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"table", "step", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row counts per table and kind (read, inserted, malformed, ...).",
		},
		[]string{"table", "kind"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Bulk insert batches committed per table.",
		},
		[]string{"table"},
	)
	fallbackCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.FallbacksTotal,
			Help: "Native bulk inserts that fell back to the generic path.",
		},
		[]string{"table", "strategy"},
	)

	for _, c := range []struct {
		name string
		col  prometheus.Collector
	}{
		{"step counter", stepCounter},
		{"step summary", stepDuration},
		{"row counter", rowCounter},
		{"batch counter", batchCounter},
		{"fallback counter", fallbackCounter},
	} {
		if err := reg.Register(c.col); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.name, err)
		}
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		stepCounter:     stepCounter,
		stepDuration:    stepDuration,
		rowCounter:      rowCounter,
		batchCounter:    batchCounter,
		fallbackCounter: fallbackCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["table"], labels["step"], labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["table"], labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.WithLabelValues(labels["table"]).Add(delta)

	case metrics.FallbacksTotal:
		if b.fallbackCounter == nil {
			return
		}
		b.fallbackCounter.WithLabelValues(labels["table"], labels["strategy"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["table"], labels["step"], labels["status"]).Observe(value)
}

// WithGrouping adds a grouping label to the push path so processes sharing
// a job (parallel workers) do not replace each other's metrics.
func (b *Backend) WithGrouping(name, value string) *Backend {
	b.grouping = append(b.grouping, [2]string{name, value})
	return b
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	p := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg)
	for _, g := range b.grouping {
		p = p.Grouping(g[0], g[1])
	}
	return p.Push()
}
