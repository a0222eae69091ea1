package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/obsvault/authgate/session"
)

// Versions keeps one refresh_token_versions row per user.
type Versions struct {
	pool poolIface
}

var (
	_ session.VersionStore = (*Versions)(nil)
	_ session.Provisioner  = (*Versions)(nil)
)

func NewVersions(pool poolIface) *Versions {
	return &Versions{pool: pool}
}

func (s *Versions) CreateVersion(ctx context.Context, userID string) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO refresh_token_versions (user_id, version)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING
		 RETURNING version`,
		userID, session.InitialVersion).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("VERSION_EXISTS").With("user_id", userID).Wrap(session.ErrVersionExists)
	}
	if err != nil {
		return 0, oops.With("operation", "create refresh token version").With("user_id", userID).Wrap(err)
	}
	return v, nil
}

func (s *Versions) GetVersion(ctx context.Context, userID string) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx,
		`SELECT version FROM refresh_token_versions WHERE user_id = $1`, userID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("VERSION_NOT_FOUND").With("user_id", userID).Wrap(session.ErrVersionNotFound)
	}
	if err != nil {
		return 0, oops.With("operation", "get refresh token version").With("user_id", userID).Wrap(err)
	}
	return v, nil
}

// IncrementVersion is a single row-locking UPDATE, so concurrent callers
// serialize in the database and each observes a distinct result.
func (s *Versions) IncrementVersion(ctx context.Context, userID string) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx,
		`UPDATE refresh_token_versions
		 SET version = version + 1, updated_at = now()
		 WHERE user_id = $1
		 RETURNING version`, userID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("VERSION_NOT_FOUND").With("user_id", userID).Wrap(session.ErrVersionNotFound)
	}
	if err != nil {
		return 0, oops.With("operation", "increment refresh token version").With("user_id", userID).Wrap(err)
	}
	return v, nil
}

func (s *Versions) DeleteVersion(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM refresh_token_versions WHERE user_id = $1`, userID); err != nil {
		return oops.With("operation", "delete refresh token version").With("user_id", userID).Wrap(err)
	}
	return nil
}
