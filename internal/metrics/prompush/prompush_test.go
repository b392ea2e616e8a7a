package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"compliancedb/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// readCounterValue reads the current value of a Counter for assertions.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	sum := m.GetSummary()
	if sum == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	return sum.GetSampleCount(), sum.GetSampleSum()
}

// TestNewBackend validates defaults and required inputs.
func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "loader", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "loader"},
		{name: "explicit job name is preserved", jobName: "nightly", gatewayURL: "http://pushgateway:9091", wantJobName: "nightly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			if b.jobName != tt.wantJobName || b.gatewayURL != tt.gatewayURL {
				t.Fatalf("backend = %q/%q, want %q/%q", b.jobName, b.gatewayURL, tt.wantJobName, tt.gatewayURL)
			}
		})
	}
}

// TestIncCounter verifies that IncCounter routes updates to the matching
// collector and ignores unknown names.
func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("loader", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"table": "inspections", "step": "stream", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"table": "accidents", "kind": metrics.KindInserted})
	b.IncCounter(metrics.BatchesTotal, 2, metrics.Labels{"table": "accidents"})
	b.IncCounter(metrics.BatchesTotal, 0.5, metrics.Labels{"table": "accidents"})
	b.IncCounter(metrics.FallbacksTotal, 1, metrics.Labels{"table": "violations", "strategy": "postgres-copy"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("inspections", "stream", "success")); got != 3 {
		t.Fatalf("stepCounter = %v, want 3", got)
	}
	if got := readCounterValue(t, b.rowCounter.WithLabelValues("accidents", metrics.KindInserted)); got != 5 {
		t.Fatalf("rowCounter = %v, want 5", got)
	}
	if got := readCounterValue(t, b.batchCounter.WithLabelValues("accidents")); got != 2.5 {
		t.Fatalf("batchCounter = %v, want 2.5", got)
	}
	if got := readCounterValue(t, b.fallbackCounter.WithLabelValues("violations", "postgres-copy")); got != 1 {
		t.Fatalf("fallbackCounter = %v, want 1", got)
	}
	if got := readCounterValue(t, b.stepCounter.WithLabelValues("x", "y", "z")); got != 0 {
		t.Fatalf("untouched stepCounter = %v, want 0", got)
	}
}

// TestIncCounterNilMetrics ensures a zero-value Backend does not panic.
func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})
	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{})
	b.IncCounter(metrics.FallbacksTotal, 1, metrics.Labels{})
	b.ObserveHistogram(metrics.StepDuration, 1, metrics.Labels{})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("loader", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	lbls := metrics.Labels{"table": "inspections", "step": "stream", "status": "success"}
	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other_metric", 2.0, lbls)

	count, sum := readSummaryCountSum(t, b.stepDuration, "inspections", "stream", "success")
	if count != 1 || sum != 1.5 {
		t.Fatalf("summary = %d/%v, want 1/1.5", count, sum)
	}
}

// TestFlush verifies that Flush pushes the registry to the gateway.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method  string
		path    string
		bodyLen int
	}
	reqCh := make(chan pushRequestInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequestInfo{method: r.Method, path: r.URL.Path, bodyLen: len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("loader-job", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"table": "inspections", "kind": "read"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequestInfo
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not reach the Pushgateway")
	}
	if got.method != http.MethodPut || got.path != "/metrics/job/loader-job" || got.bodyLen == 0 {
		t.Fatalf("push request = %+v", got)
	}
}

// TestFlush_Grouping checks grouping labels land in the push path.
func TestFlush_Grouping(t *testing.T) {
	t.Parallel()

	paths := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		paths <- r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("loader", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.WithGrouping("worker", "inspections-1")
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := <-paths; got != "/metrics/job/loader/worker/inspections-1" {
		t.Fatalf("push path = %q", got)
	}
}

// BenchmarkIncCounterRow measures incrementing the row counter through the
// Backend abstraction.
func BenchmarkIncCounterRow(b *testing.B) {
	backend, err := NewBackend("loader", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"table": "inspections", "kind": "read"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RowsTotal, 1, labels)
	}
}
