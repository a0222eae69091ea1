// Package memory holds process-local user and version stores for tests and
// single-instance development servers. Data is lost on restart.
package memory
