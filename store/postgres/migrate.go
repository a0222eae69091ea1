package postgres

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Registers the pgx5:// driver.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// schemaEngine is the part of *migrate.Migrate the Migrator drives.
type schemaEngine interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// SchemaState describes the users and refresh_token_versions schema.
type SchemaState struct {
	Version uint
	Dirty   bool
	// Latest is the highest migration embedded in this binary.
	Latest uint
}

// Pending reports whether migrate up has work to do.
func (s SchemaState) Pending() bool { return s.Version < s.Latest }

func (s SchemaState) String() string {
	return fmt.Sprintf("version %d of %d (dirty: %t)", s.Version, s.Latest, s.Dirty)
}

// Migrator applies the embedded schema.
type Migrator struct {
	engine schemaEngine
}

// NewMigrator opens a migrator on a postgres://, postgresql:// or pgx5:// URL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	target, err := migrationURL(databaseURL)
	if err != nil {
		return nil, err
	}
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}
	engine, err := migrate.NewWithSourceInstance("iofs", source, target)
	if err != nil {
		_ = source.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	return &Migrator{engine: engine}, nil
}

// migrationURL maps the DSN the server uses onto golang-migrate's pgx5 scheme.
func migrationURL(databaseURL string) (string, error) {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return "", oops.Code("MIGRATION_INIT_FAILED").Errorf("postgres.dsn must be a URL")
	}
	switch scheme {
	case "postgres", "postgresql", "pgx5":
		return "pgx5://" + rest, nil
	default:
		return "", oops.Code("MIGRATION_INIT_FAILED").With("scheme", scheme).
			Errorf("unsupported database scheme %q", scheme)
	}
}

// latestMigration returns the highest numbered migration in the embedded set.
func latestMigration() (uint, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return 0, err
	}
	var latest uint
	for _, e := range entries {
		prefix, _, _ := strings.Cut(e.Name(), "_")
		n, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		latest = max(latest, uint(n))
	}
	return latest, nil
}

// Up brings the schema to Latest. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	return step(m.engine.Up, "MIGRATION_UP_FAILED")
}

// Down drops both tables. It destroys all users and sessions.
func (m *Migrator) Down() error {
	return step(m.engine.Down, "MIGRATION_DOWN_FAILED")
}

func step(run func() error, code string) error {
	if err := run(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code(code).Wrap(err)
	}
	return nil
}

// State reads the applied version. A database that was never migrated is at
// version 0.
func (m *Migrator) State() (SchemaState, error) {
	latest, err := latestMigration()
	if err != nil {
		return SchemaState{}, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}
	state := SchemaState{Latest: latest}

	state.Version, state.Dirty, err = m.engine.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return SchemaState{Latest: latest}, nil
	case err != nil:
		return SchemaState{}, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return state, nil
}

// Force records version as applied without running it and clears the dirty
// flag left by a failed migration.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if latest, err := latestMigration(); err == nil && uint(version) > latest {
		return oops.Code("INVALID_VERSION").With("latest", latest).Errorf("version %d is not embedded", version)
	}
	if err := m.engine.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

func (m *Migrator) Close() error {
	if err := errors.Join(m.engine.Close()); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
