package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/obsvault/authgate"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	RefreshTokenHeader = "X-Refresh-Token"
	// AccessTokenHeader carries a refreshed access token back to header
	// clients.
	AccessTokenHeader = "X-Access-Token"
)

// Carrier moves a token pair between a request and a response.
type Carrier interface {
	// Extract returns the pair and whether both tokens were present.
	Extract(r *http.Request) (authgate.AuthTokenPair, bool)
	// Renew hands a newly signed access token back to the client.
	Renew(w http.ResponseWriter, accessToken string)
}

// CookieConfig controls the attributes of the auth cookies.
type CookieConfig struct {
	Secure   bool
	Domain   string
	SameSite http.SameSite
	// MaxAge applies to both cookies and should match the refresh TTL. An
	// expired access token must still reach the gate to be refreshed.
	MaxAge time.Duration
}

// DefaultCookieConfig returns HttpOnly, SameSite=Lax cookies that live as long
// as the default refresh TTL.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   30 * 24 * time.Hour,
	}
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	sameSite := c.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	}
}

// SetAuthCookies writes both tokens as cookies.
func SetAuthCookies(w http.ResponseWriter, cfg CookieConfig, pair authgate.AuthTokenPair) {
	http.SetCookie(w, cfg.cookie(AccessTokenCookie, pair.AccessToken, cfg.MaxAge))
	http.SetCookie(w, cfg.cookie(RefreshTokenCookie, pair.RefreshToken, cfg.MaxAge))
}

// ClearAuthCookies expires both cookies on the client.
func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := cfg.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// CookieCarrier reads and renews tokens stored in cookies.
type CookieCarrier struct {
	Config CookieConfig
}

func (c CookieCarrier) Extract(r *http.Request) (authgate.AuthTokenPair, bool) {
	access, err := r.Cookie(AccessTokenCookie)
	if err != nil || access.Value == "" {
		return authgate.AuthTokenPair{}, false
	}
	refresh, err := r.Cookie(RefreshTokenCookie)
	if err != nil || refresh.Value == "" {
		return authgate.AuthTokenPair{}, false
	}
	return authgate.AuthTokenPair{AccessToken: access.Value, RefreshToken: refresh.Value}, true
}

func (c CookieCarrier) Renew(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, c.Config.cookie(AccessTokenCookie, accessToken, c.Config.MaxAge))
}

// HeaderCarrier reads the access token from "Authorization: Bearer" and the
// refresh token from X-Refresh-Token.
type HeaderCarrier struct{}

func (HeaderCarrier) Extract(r *http.Request) (authgate.AuthTokenPair, bool) {
	access, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return authgate.AuthTokenPair{}, false
	}
	refresh := strings.TrimSpace(r.Header.Get(RefreshTokenHeader))
	if refresh == "" {
		return authgate.AuthTokenPair{}, false
	}
	return authgate.AuthTokenPair{AccessToken: access, RefreshToken: refresh}, true
}

func (HeaderCarrier) Renew(w http.ResponseWriter, accessToken string) {
	w.Header().Set(AccessTokenHeader, accessToken)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
