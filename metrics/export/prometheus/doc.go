// Package prometheus exposes authgate counters and the token-check latency
// histogram as a Prometheus collector.
//
// Counter names are authgate_*_total; the histogram is
// authgate_check_latency_seconds. Values are read from a snapshot on every
// scrape, so the collector holds no state of its own.
package prometheus
