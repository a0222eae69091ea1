package authgate

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/obsvault/authgate/jwt"
)

func TestHTTPError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, MessageUnauthorized},
		{"wrapped unauthorized", fmt.Errorf("%w: %w", ErrUnauthorized, jwt.ErrInvalidSignature), http.StatusUnauthorized, MessageUnauthorized},
		{"session expired", fmt.Errorf("%w: %w", ErrSessionExpired, jwt.ErrExpired), http.StatusUnauthorized, MessageSessionExpired},
		{"missing tokens", ErrMissingAuthTokens, http.StatusUnauthorized, MessageMissingAuthTokens},
		{"missing context", ErrMissingAuthContext, http.StatusBadRequest, MessageMissingAuthTokens},
		{"missing session record", ErrMissingSessionRecord, http.StatusBadRequest, MessageMissingLoginInfo},
		{"forbidden", ErrForbidden, http.StatusForbidden, MessageForbidden},
		{"user not found", ErrUserNotFound, http.StatusNotFound, MessageUserNotFoundWithID},
		{"email not found", ErrEmailNotFound, http.StatusNotFound, MessageUserNotFoundByEmail},
		{"incorrect password", ErrIncorrectPassword, http.StatusUnauthorized, MessageIncorrectPassword},
		{"email taken", ErrEmailTaken, http.StatusConflict, MessageEmailTaken},
		{"limit", ErrAPICallLimitExceeded, http.StatusTooManyRequests, MessageAPICallLimitExceeded},
		{"store", fmt.Errorf("%w: dial tcp: refused", ErrStoreUnavailable), http.StatusServiceUnavailable, MessageServiceUnavailable},
		{"unknown", errors.New("secret=abc stack trace"), http.StatusInternalServerError, MessageServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, message := HTTPError(tc.err)
			if status != tc.status || message != tc.message {
				t.Fatalf("HTTPError = (%d, %q), want (%d, %q)", status, message, tc.status, tc.message)
			}
		})
	}
}
