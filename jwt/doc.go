// Package jwt signs and verifies the two token classes used by authgate.
//
// A Codec is bound to one secret, issuer, audience and TTL. The access codec
// and the refresh codec are separate instances so that the secrets never mix.
//
// # Verification outcomes
//
// Verify either succeeds or returns a *VerifyError carrying exactly one Kind:
//
//   - KindExpired: signature and claims are intact but exp has passed.
//   - KindInvalidSignature: the token was not signed by this codec's secret.
//   - KindMalformed: anything else (bad encoding, wrong issuer or audience,
//     missing required claims).
//
// Only KindExpired is recoverable. Callers must not treat the other kinds as
// an expiry.
package jwt
