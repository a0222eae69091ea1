package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/obsvault/authgate"
)

const userColumns = `id, email, password_hash, user_type, api_service_call_limit, created_at, updated_at`

// Users implements [authgate.UserRepository].
type Users struct {
	pool poolIface
}

var _ authgate.UserRepository = (*Users)(nil)

func NewUsers(pool poolIface) *Users {
	return &Users{pool: pool}
}

func (s *Users) FindByID(ctx context.Context, id string) (authgate.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authgate.User{}, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(authgate.ErrUserNotFound)
	}
	if err != nil {
		return authgate.User{}, oops.With("operation", "find user by id").With("user_id", id).Wrap(err)
	}
	return u, nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (authgate.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authgate.User{}, oops.Code("USER_NOT_FOUND").Wrap(authgate.ErrUserNotFound)
	}
	if err != nil {
		return authgate.User{}, oops.With("operation", "find user by email").Wrap(err)
	}
	return u, nil
}

func (s *Users) Create(ctx context.Context, nu authgate.NewUser) (authgate.User, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, user_type, api_service_call_limit)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		id, nu.Email, nu.PasswordHash, string(nu.UserType), nu.APIServiceCallLimit)
	u, err := scanUser(row)
	if isUniqueViolation(err) {
		return authgate.User{}, oops.Code("EMAIL_TAKEN").Wrap(authgate.ErrEmailTaken)
	}
	if err != nil {
		return authgate.User{}, oops.With("operation", "create user").Wrap(err)
	}
	return u, nil
}

// Update leaves columns whose patch field is nil unchanged.
func (s *Users) Update(ctx context.Context, id string, p authgate.UserPatch) (authgate.User, error) {
	var userType *string
	if p.UserType != nil {
		v := string(*p.UserType)
		userType = &v
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET
		   email = COALESCE($2, email),
		   password_hash = COALESCE($3, password_hash),
		   user_type = COALESCE($4, user_type),
		   api_service_call_limit = COALESCE($5, api_service_call_limit),
		   updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, p.Email, p.PasswordHash, userType, p.APIServiceCallLimit)
	u, err := scanUser(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return authgate.User{}, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(authgate.ErrUserNotFound)
	case isUniqueViolation(err):
		return authgate.User{}, oops.Code("EMAIL_TAKEN").With("user_id", id).Wrap(authgate.ErrEmailTaken)
	case err != nil:
		return authgate.User{}, oops.With("operation", "update user").With("user_id", id).Wrap(err)
	}
	return u, nil
}

// Delete removes the user and, through the foreign key, its version row.
func (s *Users) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return oops.With("operation", "delete user").With("user_id", id).Wrap(err)
	}
	return nil
}

func (s *Users) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (authgate.User, error) {
	var (
		u        authgate.User
		userType string
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &userType, &u.APIServiceCallLimit, &created, &updated); err != nil {
		return authgate.User{}, err
	}
	u.UserType = authgate.UserType(userType)
	u.CreatedAt = created.UTC()
	u.UpdatedAt = updated.UTC()
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
