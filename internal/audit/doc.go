// Package audit buffers security events and hands them to a Sink off the
// request path.
//
// The package decides nothing about which events exist. The authgate service
// builds events and owns their names and error codes.
package audit
