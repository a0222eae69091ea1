// Package permission ranks roles so that a higher role satisfies any check for
// a lower one.
//
// A [Hierarchy] is populated during start-up, frozen, and then consulted on
// every authorization check without locks contending on writers.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authgate, jwt, or session.
package permission
