// Package api is the HTTP surface of the gateway: account routes under
// /api/auth, the admin user editor, the metered obs-vault route and the
// operational endpoints.
package api
