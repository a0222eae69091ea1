// Package internaldefs holds the exported metric names, help strings and
// bucket bounds shared by the Prometheus and OpenTelemetry exporters.
package internaldefs
