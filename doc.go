// Package authgate issues and checks dual access/refresh JWTs and revokes
// every session of a user with a single counter bump.
//
// Access tokens are short-lived and carry the profile data a protected
// handler needs. Refresh tokens are long-lived and carry only the user id and
// the user's refresh-token version. When an access token expires, a refresh
// token whose version still matches the stored version mints a new access
// token. Logging out increments the stored version, which silently retires
// every refresh token minted before it on every device.
//
// [Service] methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Service], [Builder], [Config],
// the error taxonomy and [HTTPError]. Token encoding lives in jwt, version
// persistence in session and store/postgres, flow orchestration under
// internal/flows.
//
// # What this package must NOT do
//
//   - Keep per-user state in process memory. The version store is the only
//     source of truth for whether a session is live.
//   - Reissue refresh tokens while checking a token pair.
//   - Leak secrets, hashes or store errors through [HTTPError] messages.
package authgate
