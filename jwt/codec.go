package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretBytes = 32

// Config binds a Codec to one token class.
type Config struct {
	Secret   []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	Leeway   time.Duration
	// Now overrides the clock used for both signing and verification.
	Now func() time.Time
}

// Codec signs and verifies HS256 tokens for a single token class.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	config Config
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}

	return &Codec{
		config: cfg,
		parser: jwt.NewParser(options...),
	}, nil
}

// TTL returns the lifetime stamped on every signed token.
func (c *Codec) TTL() time.Duration {
	return c.config.TTL
}

// Sign stamps claims with a fresh jti, iat, exp, issuer and audience, then
// signs them. Any registered claims already set on claims are overwritten.
func (c *Codec) Sign(claims Claims) (string, error) {
	if claims == nil {
		return "", errors.New("nil claims")
	}
	now := c.config.Now()

	rc := claims.registered()
	rc.ID = uuid.NewString()
	rc.Issuer = c.config.Issuer
	rc.Audience = jwt.ClaimStrings{c.config.Audience}
	rc.IssuedAt = jwt.NewNumericDate(now)
	rc.ExpiresAt = jwt.NewNumericDate(now.Add(c.config.TTL))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.config.Secret)
}

// Verify parses tokenStr into claims. On failure the error is always a
// *VerifyError.
func (c *Codec) Verify(tokenStr string, claims Claims) error {
	if claims == nil {
		return &VerifyError{Kind: KindMalformed, Err: errors.New("nil claims")}
	}
	if tokenStr == "" {
		return &VerifyError{Kind: KindMalformed, Err: jwt.ErrTokenMalformed}
	}

	token, err := c.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.config.Secret, nil
	})
	if err != nil {
		return classify(err)
	}
	if !token.Valid {
		return &VerifyError{Kind: KindMalformed, Err: jwt.ErrTokenInvalidClaims}
	}
	return nil
}
