// Package rate throttles failed logins with fixed-window Redis counters.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key prefixes:
//   - al:  failed logins per email
//   - ali: failed logins per client IP
package rate
