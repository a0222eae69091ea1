package authgate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies an in-process counter or histogram.
type MetricID uint16

const (
	MetricTokensIssued MetricID = iota
	MetricAccessFastPath
	MetricAccessRefreshed
	// MetricAccessRejected counts access tokens that failed for any reason
	// other than expiry.
	MetricAccessRejected
	MetricRefreshRejected
	MetricSessionExpired
	MetricVersionMismatch
	MetricMissingSessionRecord
	MetricUserMissing
	MetricSessionsInvalidated
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginThrottled
	MetricSignupSuccess
	MetricSignupDuplicate
	MetricLogout
	MetricForbidden
	MetricAPICallConsumed
	MetricAPICallLimited
	MetricStoreFailure
	MetricCheckLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricTokensIssued:         "tokens_issued",
	MetricAccessFastPath:       "access_fast_path",
	MetricAccessRefreshed:      "access_refreshed",
	MetricAccessRejected:       "access_rejected",
	MetricRefreshRejected:      "refresh_rejected",
	MetricSessionExpired:       "session_expired",
	MetricVersionMismatch:      "version_mismatch",
	MetricMissingSessionRecord: "missing_session_record",
	MetricUserMissing:          "user_missing",
	MetricSessionsInvalidated:  "sessions_invalidated",
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricLoginThrottled:       "login_throttled",
	MetricSignupSuccess:        "signup_success",
	MetricSignupDuplicate:      "signup_duplicate",
	MetricLogout:               "logout",
	MetricForbidden:            "forbidden",
	MetricAPICallConsumed:      "api_call_consumed",
	MetricAPICallLimited:       "api_call_limited",
	MetricStoreFailure:         "store_failure",
	MetricCheckLatency:         "check_latency",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// IsHistogram reports whether id records latency observations.
func (id MetricID) IsHistogram() bool {
	return id == MetricCheckLatency
}

// MetricIDs lists every defined metric in declaration order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the upper bounds of the latency buckets. The last bucket
// is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sumNS   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// LatencySum is the sum of all observations per histogram.
	LatencySum map[MetricID]time.Duration
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Non-histogram ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id >= metricIDCount || !id.IsHistogram() {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
	if d > 0 {
		atomic.AddUint64(&m.histograms[id].sumNS, uint64(d))
	}
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
		LatencySum: map[MetricID]time.Duration{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id.IsHistogram() {
			if !m.enableLatency {
				continue
			}
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
			s.LatencySum[id] = time.Duration(atomic.LoadUint64(&m.histograms[id].sumNS))
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
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
