package internaldefs

import (
	"strconv"
	"strings"

	"github.com/obsvault/authgate"
)

// Namespace prefixes every exported metric name.
const Namespace = "authgate"

// BucketCount is the number of latency buckets, the unbounded one included.
const BucketCount = len(authgate.HistogramBounds) + 1

type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

var help = map[authgate.MetricID]string{
	authgate.MetricTokensIssued:         "Access and refresh token pairs issued.",
	authgate.MetricAccessFastPath:       "Checks answered by a still-valid access token.",
	authgate.MetricAccessRefreshed:      "Access tokens reissued from a refresh token.",
	authgate.MetricAccessRejected:       "Access tokens rejected for a reason other than expiry.",
	authgate.MetricRefreshRejected:      "Refresh tokens rejected as invalid.",
	authgate.MetricSessionExpired:       "Checks that ended with an expired or revoked session.",
	authgate.MetricVersionMismatch:      "Refresh tokens carrying a revoked version.",
	authgate.MetricMissingSessionRecord: "Users without a refresh token version record.",
	authgate.MetricUserMissing:          "Refresh tokens whose user no longer exists.",
	authgate.MetricSessionsInvalidated:  "Invalidate-all operations.",
	authgate.MetricLoginSuccess:         "Successful logins.",
	authgate.MetricLoginFailure:         "Failed logins.",
	authgate.MetricLoginThrottled:       "Logins refused by the failed-login throttle.",
	authgate.MetricSignupSuccess:        "Successful signups.",
	authgate.MetricSignupDuplicate:      "Signups rejected for a duplicate email.",
	authgate.MetricLogout:               "Logouts.",
	authgate.MetricForbidden:            "Role checks that failed.",
	authgate.MetricAPICallConsumed:      "API service calls consumed.",
	authgate.MetricAPICallLimited:       "API service calls refused at the limit.",
	authgate.MetricStoreFailure:         "Backing store operations that failed.",
	authgate.MetricCheckLatency:         "Latency of token checks.",
}

// Counters lists a definition for every counter metric.
func Counters() []CounterDef {
	var defs []CounterDef
	for _, id := range authgate.MetricIDs() {
		if id.IsHistogram() {
			continue
		}
		defs = append(defs, CounterDef{ID: id, Name: Namespace + "_" + id.String() + "_total", Help: help[id]})
	}
	return defs
}

// Histograms lists a definition for every latency metric.
func Histograms() []HistogramDef {
	var defs []HistogramDef
	for _, id := range authgate.MetricIDs() {
		if !id.IsHistogram() {
			continue
		}
		defs = append(defs, HistogramDef{ID: id, Name: Namespace + "_" + id.String() + "_seconds", Help: help[id]})
	}
	return defs
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(authgate.HistogramBounds))
	for i, b := range authgate.HistogramBounds {
		out[i] = b.Seconds()
	}
	return out
}

// BoundSuffixes names each bucket for instrument names, "0_005" for 5ms and
// "inf" for the last.
func BoundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
