package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/jwt"
)

// TokenChecker is the part of *authgate.Service that Authenticate needs.
type TokenChecker interface {
	CheckAuthTokens(ctx context.Context, pair authgate.AuthTokenPair) (authgate.CheckResult, error)
}

// Identity is attached to the request context by [Authenticate].
type Identity struct {
	Claims *jwt.AccessClaims
	// AccessToken is the token that authenticated this request. It differs
	// from the presented one when the request triggered a refresh.
	AccessToken string
}

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity stored by [Authenticate].
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.Claims == nil {
		return Identity{}, false
	}
	return id, true
}

// IdentityFromRequest returns [authgate.ErrMissingAuthContext] when r did not
// pass through Authenticate.
func IdentityFromRequest(r *http.Request) (Identity, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return Identity{}, authgate.ErrMissingAuthContext
	}
	return id, nil
}

type options struct {
	logger   *slog.Logger
	carriers []Carrier
}

// Option configures the middleware constructors.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCarriers replaces the default carriers. They are tried in order and
// the first one holding both tokens wins.
func WithCarriers(carriers ...Carrier) Option {
	return func(o *options) {
		if len(carriers) > 0 {
			o.carriers = carriers
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		carriers: []Carrier{CookieCarrier{Config: DefaultCookieConfig()}, HeaderCarrier{}},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Authenticate rejects requests without a valid token pair. When the access
// token had expired and was refreshed, the new token is handed back through
// the carrier that supplied the pair.
func Authenticate(checker TokenChecker, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := RequestContext(r)

			pair, carrier, ok := extract(r, o.carriers)
			if !ok {
				WriteError(w, r.WithContext(ctx), o.logger, authgate.ErrMissingAuthTokens)
				return
			}

			res, err := checker.CheckAuthTokens(ctx, pair)
			if err != nil {
				WriteError(w, r.WithContext(ctx), o.logger, err)
				return
			}
			if res.Refreshed {
				carrier.Renew(w, res.AccessToken)
			}

			ctx = WithIdentity(ctx, Identity{Claims: res.Claims, AccessToken: res.AccessToken})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extract(r *http.Request, carriers []Carrier) (authgate.AuthTokenPair, Carrier, bool) {
	for _, c := range carriers {
		if pair, ok := c.Extract(r); ok {
			return pair, c, true
		}
	}
	return authgate.AuthTokenPair{}, nil, false
}

// RequestContext copies the client address and user agent of r into its
// context for audit events.
func RequestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = authgate.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authgate.WithUserAgent(ctx, ua)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
