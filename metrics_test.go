package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled metrics must snapshot empty")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricAuthorizeLatency, 3*time.Millisecond)
	m.Observe(MetricAuthorizeLatency, 40*time.Millisecond)
	m.Observe(MetricAuthorizeLatency, 2*time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricAuthorizeLatency]
	if len(buckets) != len(HistogramBounds)+1 {
		t.Fatalf("expected %d buckets, got %d", len(HistogramBounds)+1, len(buckets))
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[len(buckets)-1] != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}
	if got, want := snap.HistogramSums[MetricAuthorizeLatency], 2043*time.Millisecond; got != want {
		t.Fatalf("expected sum %s, got %s", want, got)
	}
	if _, ok := snap.Counters[MetricAuthorizeLatency]; ok {
		t.Fatal("latency histogram must not appear as a counter")
	}
}
