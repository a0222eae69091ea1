package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims is a claim set the codec can stamp with registered claims.
// AccessClaims and RefreshClaims are the two implementations.
type Claims interface {
	jwt.Claims
	registered() *jwt.RegisteredClaims
}

// AccessClaims carries enough profile data to authorize a request without a
// store lookup.
type AccessClaims struct {
	UserID              string `json:"userId"`
	Email               string `json:"email"`
	UserType            string `json:"userType"`
	APIServiceCallLimit int    `json:"apiServiceCallLimit"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) registered() *jwt.RegisteredClaims {
	return &c.RegisteredClaims
}

// Validate is invoked by the parser after the registered claims are checked.
func (c *AccessClaims) Validate() error {
	if c.UserID == "" {
		return errMissingUserID
	}
	return nil
}

// RefreshClaims is deliberately minimal: a profile change never requires a
// new refresh token.
type RefreshClaims struct {
	UserID              string `json:"userId"`
	RefreshTokenVersion int64  `json:"refreshTokenVersion"`
	jwt.RegisteredClaims
}

func (c *RefreshClaims) registered() *jwt.RegisteredClaims {
	return &c.RegisteredClaims
}

func (c *RefreshClaims) Validate() error {
	if c.UserID == "" {
		return errMissingUserID
	}
	return nil
}
