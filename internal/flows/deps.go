package flows

import (
	"context"

	"github.com/obsvault/authgate/jwt"
	"github.com/obsvault/authgate/session"
)

// Subject is the user data stamped into an access token.
type Subject struct {
	UserID              string
	Email               string
	UserType            string
	APIServiceCallLimit int
}

// TokenDeps is shared by every flow. The root Service builds it once.
type TokenDeps struct {
	SignAccess    func(Subject) (string, *jwt.AccessClaims, error)
	SignRefresh   func(userID string, version int64) (string, error)
	VerifyAccess  func(token string) (*jwt.AccessClaims, error)
	VerifyRefresh func(token string) (*jwt.RefreshClaims, error)

	// LoadSubject returns an error matching UserNotFound when the user is absent.
	LoadSubject  func(ctx context.Context, userID string) (Subject, error)
	UserNotFound error

	Versions session.VersionStore
}

// Deps groups flow dependency sets.
type Deps struct {
	Tokens TokenDeps
}
