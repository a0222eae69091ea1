// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// When a stored hash was produced with weaker parameters than the current
// [Config], [Argon2.NeedsUpgrade] reports true so the caller can rehash after
// the next successful login.
//
// # What this package must NOT do
//
//   - Store or fetch passwords. Callers supply plaintext and persist hashes.
//   - Log plaintext passwords.
package password
