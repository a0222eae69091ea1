package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestQuantileNearestRank(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[len(samples)-1-i] = time.Duration(i+1) * time.Millisecond
	}
	r := newPhaseResult("check", time.Second, samples, 0)

	if got := r.quantile(0.50); got != 50*time.Millisecond {
		t.Fatalf("p50 = %s", got)
	}
	if got := r.quantile(0.99); got != 99*time.Millisecond {
		t.Fatalf("p99 = %s", got)
	}
	if got := r.quantile(1); got != 100*time.Millisecond {
		t.Fatalf("p100 = %s", got)
	}
	if got := r.quantile(0); got != time.Millisecond {
		t.Fatalf("p0 = %s", got)
	}
	if got := (phaseResult{}).quantile(0.99); got != 0 {
		t.Fatalf("empty p99 = %s", got)
	}
}

func TestThroughput(t *testing.T) {
	r := newPhaseResult("invalidate", time.Second, []time.Duration{3, 1, 2}, 1)
	if r.ops() != 3 || r.failures != 1 || r.quantile(0.5) != 2 {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.throughput() != 3 {
		t.Fatalf("ops/sec = %f", r.throughput())
	}
	if (phaseResult{}).throughput() != 0 {
		t.Fatal("zero elapsed must not divide by zero")
	}
}

func TestWriteReportListsEveryPhase(t *testing.T) {
	var buf bytes.Buffer
	err := writeReport(&buf, []phaseResult{
		newPhaseResult("check (fast path)", time.Second, []time.Duration{time.Millisecond}, 0),
		newPhaseResult("invalidate", time.Second, []time.Duration{2 * time.Millisecond}, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "check (fast path)") || !strings.Contains(lines[2], "invalidate") {
		t.Fatalf("rows out of order: %q", buf.String())
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	states := make([]seeded, 4)
	var calls atomic.Int64
	r := runPhase(context.Background(), "check", states, 100, 8, func(context.Context, *seeded) error {
		if calls.Add(1)%2 == 0 {
			return errors.New("fail")
		}
		return nil
	})
	if r.ops() != 100 || r.failures != 50 || r.name != "check" {
		t.Fatalf("expected 100 ops with 50 failures, got ops=%d failures=%d", r.ops(), r.failures)
	}
}
