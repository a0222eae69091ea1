// Package postgres stores users and refresh-token versions in PostgreSQL.
//
// Version bumps are a single UPDATE ... RETURNING statement, so concurrent
// revocations never lose an increment. The schema ships as embedded
// golang-migrate migrations; run [Migrator.Up] before serving.
package postgres
