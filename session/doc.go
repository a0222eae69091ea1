// Package session persists the per-user refresh-token version counter.
//
// The counter is the only revocation mechanism: a refresh token is live only
// while the version embedded in it equals the stored version. Incrementing the
// counter revokes every refresh token minted before the increment, on every
// device, without a blocklist.
//
// # Architecture boundaries
//
// This package owns the [VersionStore] contract and its Redis implementation
// ([RedisStore]). Other backends (see store/postgres) satisfy the same
// contract. It does NOT interpret tokens or decide whether a request is
// authorized.
//
// # What this package must NOT do
//
//   - Import authgate or jwt (no upward imports).
//   - Increment with read-modify-write in Go. Every increment is a single
//     atomic store operation.
//   - Decrement or reset a version.
package session
