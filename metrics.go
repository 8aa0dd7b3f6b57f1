package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginLocked
	MetricLoginUnverified
	MetricTOTPRequired
	MetricTOTPSuccess
	MetricTOTPFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricSessionCreated
	MetricSessionRevoked
	MetricLogout
	MetricLogoutAll
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricRegisterRateLimited
	MetricPasswordChangeSuccess
	MetricPasswordChangeWrongCurrent
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricAuthorizeFailure
	MetricCSRFFailure
	MetricAccountRoleChanged
	MetricAccountDisabled
	MetricAccountEnabled
	MetricAccountDeleted
	MetricStoreUnavailable
	// MetricAuthorizeLatency is the only histogram.
	MetricAuthorizeLatency
	metricIDCount
)

// MetricCount is the number of defined metric IDs.
const MetricCount = int(metricIDCount)

const histBucketCount = 8

// HistogramBounds are the upper bounds of the first seven latency buckets;
// the eighth is unbounded.
var HistogramBounds = []time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// counter is padded to a cache line so hot login counters do not share one.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

type latency struct {
	buckets [histBucketCount]atomic.Uint64
	sumNS   atomic.Int64
}

// Metrics holds the engine counters and the authorize latency histogram.
// All methods are safe on a nil *Metrics.
type Metrics struct {
	enabled   bool
	latencyOn bool
	counters  [metricIDCount]counter
	authorize latency
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms hold
// per-bucket (not cumulative) counts; HistogramSums the total observed time.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:   cfg.Enabled,
		latencyOn: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latencyOn
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricAuthorizeLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the latency histogram of id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAuthorizeLatency {
		return
	}
	m.authorize.buckets[bucketIndex(d)].Add(1)
	m.authorize.sumNS.Add(int64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricAuthorizeLatency {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := emptySnapshot()
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < MetricAuthorizeLatency; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.latencyOn {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.authorize.buckets[i].Load()
		}
		s.Histograms[MetricAuthorizeLatency] = buckets
		s.HistogramSums[MetricAuthorizeLatency] = time.Duration(m.authorize.sumNS.Load())
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
