// Package migrations embeds the schema migrations for the database-backed
// stores, one directory per dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Dialect directories inside FS.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)
