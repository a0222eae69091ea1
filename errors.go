package authgate

import "errors"

var (
	// ErrUnauthorized covers tampered, malformed or foreign tokens and users
	// that vanished after a refresh token was minted.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired means the refresh token expired or was revoked.
	ErrSessionExpired = errors.New("session expired")
	// ErrMissingSessionRecord means the user has no refresh-token version. It
	// indicates a provisioning bug.
	ErrMissingSessionRecord = errors.New("missing session record")
	// ErrMissingUsageRecord means the user has no API usage entry.
	ErrMissingUsageRecord = errors.New("missing api usage record")
	// ErrMissingAuthTokens is returned when a request carries neither or only
	// one of the two tokens.
	ErrMissingAuthTokens = errors.New("missing auth tokens")
	// ErrMissingAuthContext is returned when identity is read from a request
	// that never passed the authentication gate.
	ErrMissingAuthContext = errors.New("missing auth context")
	// ErrForbidden is returned when the caller's role does not dominate the
	// required role.
	ErrForbidden = errors.New("forbidden")

	// ErrUserNotFound is returned by user stores for unknown ids.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailNotFound is returned by login for unknown emails.
	ErrEmailNotFound = errors.New("email not found")
	// ErrEmailTaken is returned when an email already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrIncorrectPassword is returned by login for a wrong password.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrInvalidEmail is returned for syntactically invalid addresses.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrEmptyEmail is returned when no email was supplied.
	ErrEmptyEmail = errors.New("empty email")
	// ErrEmptyPassword is returned when no password was supplied.
	ErrEmptyPassword = errors.New("empty password")
	// ErrPasswordPolicy is returned when a password is too short or too long.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidUserType is returned for roles outside the hierarchy.
	ErrInvalidUserType = errors.New("invalid user type")
	// ErrInvalidCallLimit is returned for negative API call limits.
	ErrInvalidCallLimit = errors.New("invalid api call limit")
	// ErrInvalidRequest is returned for requests the transport could not decode.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrLoginThrottled is returned while an email or client IP is cooling
	// down after too many failed logins.
	ErrLoginThrottled = errors.New("too many login attempts")

	// ErrAPICallLimitExceeded is returned once a user has used every call in
	// the limit stamped into their access token.
	ErrAPICallLimitExceeded = errors.New("api call limit exceeded")

	// ErrStoreUnavailable wraps store failures whose outcome is ambiguous.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrServiceNotReady is returned by a zero or closed Service.
	ErrServiceNotReady = errors.New("service not ready")
	// ErrUsageNotConfigured is returned when no usage counter was wired.
	ErrUsageNotConfigured = errors.New("api usage counter not configured")
	// ErrAccountsNotConfigured is returned when the user store cannot create
	// or update users.
	ErrAccountsNotConfigured = errors.New("account management not configured")
)
