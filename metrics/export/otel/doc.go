// Package otel registers observable OpenTelemetry instruments for authgate
// metrics. The caller owns the MeterProvider; one callback reads a snapshot
// per collection cycle.
package otel
