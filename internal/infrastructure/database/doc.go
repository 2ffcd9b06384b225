// Package database manages the relay's SQLite connection.
//
// It handles connection setup (WAL mode, busy timeout, foreign keys),
// embedded schema migrations, and health checks. The identities and
// telemetries tables both live here; repositories in internal/identity and
// internal/telemetry run their queries against the wrapped *sql.DB.
package database
