package authgate

import (
	"context"
	"time"

	"github.com/obsvault/authgate/jwt"
)

// UserType is the role stamped into access tokens.
type UserType string

const (
	UserTypeRegular UserType = "REG_USER"
	UserTypeAdmin   UserType = "ADMIN"
)

// User is the persisted account record.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	UserType            UserType
	APIServiceCallLimit int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewUser is the input to [UserRepository.Create].
type NewUser struct {
	Email               string
	PasswordHash        string
	UserType            UserType
	APIServiceCallLimit int
}

// UserPatch carries optional field updates. Nil fields are left unchanged.
type UserPatch struct {
	Email               *string
	PasswordHash        *string
	UserType            *UserType
	APIServiceCallLimit *int
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.PasswordHash == nil && p.UserType == nil && p.APIServiceCallLimit == nil
}

// UserUpdate is the administrative change set accepted by
// [Service.UpdateUser]. Password is plaintext and is hashed before storage.
type UserUpdate struct {
	Email               *string   `json:"email,omitempty"`
	Password            *string   `json:"password,omitempty"`
	UserType            *UserType `json:"userType,omitempty"`
	APIServiceCallLimit *int      `json:"apiServiceCallLimit,omitempty"`
}

// UserStore is the read-only lookup the token lifecycle needs. Both methods
// return an error matching [ErrUserNotFound] when the user does not exist.
type UserStore interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
}

// UserRepository adds the writes used by signup and administration.
// Create returns an error matching [ErrEmailTaken] for duplicate emails.
type UserRepository interface {
	UserStore
	Create(ctx context.Context, u NewUser) (User, error)
	Update(ctx context.Context, id string, patch UserPatch) (User, error)
	Delete(ctx context.Context, id string) error
}

// UsageCounter tracks downstream API calls per user. Consume returns errors
// matching usage.ErrLimitExceeded and usage.ErrEntryNotFound; Used and
// Create return usage.ErrEntryNotFound and usage.ErrEntryExists.
type UsageCounter interface {
	Create(ctx context.Context, userID string) error
	Used(ctx context.Context, userID string) (int64, error)
	Consume(ctx context.Context, userID string, limit int) (int64, error)
	Delete(ctx context.Context, userID string) error
}

// AuthTokenPair is the bearer credential set round-tripped by clients.
type AuthTokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CheckResult is returned by [Service.CheckAuthTokens].
type CheckResult struct {
	Claims      *jwt.AccessClaims
	AccessToken string
	// Refreshed is true when AccessToken differs from the presented one and
	// the transport should hand it back to the client.
	Refreshed bool
}

// Profile is the view of a user returned by [Service.Profile].
type Profile struct {
	ID                  string   `json:"id"`
	Email               string   `json:"email"`
	UserType            UserType `json:"userType"`
	APIServiceCallLimit int      `json:"apiServiceCallLimit"`
	APIServiceCallsUsed int64    `json:"apiServiceCallsUsed"`
}

// Usage reports consumed and allowed downstream calls.
type Usage struct {
	Used  int64 `json:"used"`
	Limit int   `json:"limit"`
}
