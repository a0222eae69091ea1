// Package usage counts downstream API calls per user in Redis.
//
// The limit travels in the caller's access token; this package only stores
// how many calls were made and refuses to count past the limit. Checking and
// incrementing happen in one script, so concurrent calls cannot overshoot.
package usage
