// Package middleware adapts the authgate Service to net/http.
//
// [Authenticate] reads the token pair from cookies or headers, calls
// CheckAuthTokens, and stores the resulting [Identity] on the request
// context. [Authorize] and [RequireCallBudget] run downstream of it.
// Every rejection goes through [WriteError], so only curated messages reach
// the client.
package middleware
