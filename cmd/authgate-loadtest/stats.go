package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"
	"time"
)

// phaseResult holds the latencies of one load phase, sorted ascending.
type phaseResult struct {
	name     string
	elapsed  time.Duration
	samples  []time.Duration
	failures int64
}

func newPhaseResult(name string, elapsed time.Duration, samples []time.Duration, failures int64) phaseResult {
	slices.Sort(samples)
	return phaseResult{name: name, elapsed: elapsed, samples: samples, failures: failures}
}

func (p phaseResult) ops() int { return len(p.samples) }

func (p phaseResult) throughput() float64 {
	if p.elapsed <= 0 {
		return 0
	}
	return float64(len(p.samples)) / p.elapsed.Seconds()
}

// quantile uses the nearest-rank method; q is in [0, 1].
func (p phaseResult) quantile(q float64) time.Duration {
	n := len(p.samples)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(n))) - 1
	return p.samples[min(max(rank, 0), n-1)]
}

func writeReport(w io.Writer, results []phaseResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tops\tfailures\telapsed\tops/sec\tp50\tp95\tp99\t")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.0f\t%s\t%s\t%s\t\n",
			r.name,
			r.ops(),
			r.failures,
			r.elapsed.Round(time.Millisecond),
			r.throughput(),
			r.quantile(0.50).Round(time.Microsecond),
			r.quantile(0.95).Round(time.Microsecond),
			r.quantile(0.99).Round(time.Microsecond),
		)
	}
	return tw.Flush()
}
