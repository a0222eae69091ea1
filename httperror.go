package authgate

import (
	"errors"
	"net/http"
)

// Messages sent to clients. No other text crosses the HTTP boundary.
const (
	MessageServerError          = "An internal server error occurred"
	MessageServiceUnavailable   = "The service is temporarily unavailable"
	MessageUnauthorized         = "Unauthorized"
	MessageMissingAuthTokens    = "Unauthorized. Missing access or refresh token"
	MessageSessionExpired       = "User session has expired"
	MessageMissingLoginInfo     = "User account is not associated with a piece of required login information. Please contact support"
	MessageForbidden            = "Forbidden"
	MessageUserNotFoundWithID   = "User not found with id"
	MessageUserNotFoundByEmail  = "User not found with this email"
	MessageIncorrectPassword    = "The entered password is incorrect"
	MessageEmailTaken           = "The email you have provided is already associated with an account"
	MessageEmptyEmail           = "Please enter an email"
	MessageInvalidEmail         = "Please enter a valid email"
	MessageEmptyPassword        = "Please enter a password"
	MessagePasswordPolicy       = "The password does not meet the length requirements"
	MessageInvalidUserType      = "The user type is not recognised"
	MessageInvalidCallLimit     = "The API service call limit must not be negative"
	MessageInvalidRequest       = "The request could not be understood"
	MessageAPICallLimitExceeded = "API service call limit reached"
	MessageNotFound             = "The requested resource was not found"
	MessageLoginThrottled       = "Too many login attempts. Please try again later"
	MessageRequestTimeout       = "The request took too long to complete"

	MessageLoginSuccess  = "Successfully logged in"
	MessageSignupSuccess = "Successfully signed up"
	MessageLogoutSuccess = "Successfully logged out"
)

type httpMapping struct {
	target  error
	status  int
	message string
}

// Order matters: ErrMissingAuthTokens is checked before the generic
// ErrUnauthorized it may wrap.
var httpMappings = []httpMapping{
	{ErrMissingAuthTokens, http.StatusUnauthorized, MessageMissingAuthTokens},
	{ErrMissingAuthContext, http.StatusBadRequest, MessageMissingAuthTokens},
	{ErrSessionExpired, http.StatusUnauthorized, MessageSessionExpired},
	{ErrUnauthorized, http.StatusUnauthorized, MessageUnauthorized},
	{ErrMissingSessionRecord, http.StatusBadRequest, MessageMissingLoginInfo},
	{ErrMissingUsageRecord, http.StatusBadRequest, MessageMissingLoginInfo},
	{ErrForbidden, http.StatusForbidden, MessageForbidden},
	{ErrUserNotFound, http.StatusNotFound, MessageUserNotFoundWithID},
	{ErrEmailNotFound, http.StatusNotFound, MessageUserNotFoundByEmail},
	{ErrIncorrectPassword, http.StatusUnauthorized, MessageIncorrectPassword},
	{ErrEmailTaken, http.StatusConflict, MessageEmailTaken},
	{ErrEmptyEmail, http.StatusBadRequest, MessageEmptyEmail},
	{ErrInvalidEmail, http.StatusBadRequest, MessageInvalidEmail},
	{ErrEmptyPassword, http.StatusBadRequest, MessageEmptyPassword},
	{ErrPasswordPolicy, http.StatusBadRequest, MessagePasswordPolicy},
	{ErrInvalidUserType, http.StatusBadRequest, MessageInvalidUserType},
	{ErrInvalidCallLimit, http.StatusBadRequest, MessageInvalidCallLimit},
	{ErrInvalidRequest, http.StatusBadRequest, MessageInvalidRequest},
	{ErrAPICallLimitExceeded, http.StatusTooManyRequests, MessageAPICallLimitExceeded},
	{ErrLoginThrottled, http.StatusTooManyRequests, MessageLoginThrottled},
	{ErrStoreUnavailable, http.StatusServiceUnavailable, MessageServiceUnavailable},
}

// HTTPError maps err to a status code and a curated client message.
// Unrecognised errors become 500 with a generic message.
func HTTPError(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, MessageServerError
}
