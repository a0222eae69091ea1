// Package flows contains the token lifecycle orchestrators behind every
// authgate.Service entry point.
//
// Each Run* function takes a typed dependency struct and returns a result with
// a failure kind. The root package maps failure kinds to public errors,
// metrics, audit events and log severity.
//
// # Architecture boundaries
//
// Flows coordinate the token codecs, the user lookup and the version store.
// They do NOT own any of these resources; ownership stays with the Service.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authgate (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the dependency structs.
package flows
