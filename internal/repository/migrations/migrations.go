// Package migrations embeds the users schema for each SQL backend.
package migrations

import "embed"

// MySQL and SQLite are golang-migrate sources; Postgres is a goose directory.
var (
	//go:embed mysql/*.sql
	MySQL embed.FS

	//go:embed sqlite/*.sql
	SQLite embed.FS

	//go:embed postgres/*.sql
	Postgres embed.FS
)
