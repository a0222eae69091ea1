package middleware

import (
	"context"
	"net/http"

	"github.com/obsvault/authgate"
)

// RoleAuthorizer is the part of *authgate.Service that Authorize needs.
type RoleAuthorizer interface {
	AuthorizeRole(ctx context.Context, have, required authgate.UserType) error
}

// Authorize admits requests whose authenticated role dominates required.
// It must be mounted after [Authenticate].
func Authorize(authorizer RoleAuthorizer, required authgate.UserType, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := IdentityFromRequest(r)
			if err != nil {
				WriteError(w, r, o.logger, err)
				return
			}
			if err := authorizer.AuthorizeRole(r.Context(), authgate.UserType(id.Claims.UserType), required); err != nil {
				WriteError(w, r, o.logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
