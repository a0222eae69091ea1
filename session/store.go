package session

import (
	"context"
	"errors"
)

// InitialVersion is the value a freshly provisioned user starts at.
const InitialVersion int64 = 1

var (
	// ErrVersionNotFound is returned when the user has no version record.
	ErrVersionNotFound = errors.New("refresh token version not found")
	// ErrVersionExists is returned when provisioning a user twice.
	ErrVersionExists = errors.New("refresh token version already exists")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// VersionStore reads and atomically bumps refresh-token versions.
type VersionStore interface {
	GetVersion(ctx context.Context, userID string) (int64, error)
	// IncrementVersion adds exactly 1 and returns the new value. It must not
	// create a missing record.
	IncrementVersion(ctx context.Context, userID string) (int64, error)
}

// Provisioner creates and removes version records during account lifecycle.
type Provisioner interface {
	CreateVersion(ctx context.Context, userID string) (int64, error)
	DeleteVersion(ctx context.Context, userID string) error
}
