package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/jwt"
)

const (
	CallsUsedHeader  = "X-API-Calls-Used"
	CallsLimitHeader = "X-API-Calls-Limit"
)

// CallBudget is the part of *authgate.Service that RequireCallBudget needs.
type CallBudget interface {
	ConsumeAPICall(ctx context.Context, claims *jwt.AccessClaims) (authgate.Usage, error)
}

// RequireCallBudget consumes one downstream API call before the handler
// runs and rejects the request with 429 once the limit is spent. It must be
// mounted after [Authenticate].
func RequireCallBudget(budget CallBudget, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := IdentityFromRequest(r)
			if err != nil {
				WriteError(w, r, o.logger, err)
				return
			}
			usage, err := budget.ConsumeAPICall(r.Context(), id.Claims)
			if err != nil {
				WriteError(w, r, o.logger, err)
				return
			}
			w.Header().Set(CallsUsedHeader, strconv.FormatInt(usage.Used, 10))
			w.Header().Set(CallsLimitHeader, strconv.Itoa(usage.Limit))
			next.ServeHTTP(w, r)
		})
	}
}
