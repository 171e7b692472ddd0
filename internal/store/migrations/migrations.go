// Package migrations embeds the schema migrations applied at startup and by
// cmd/migrate. The SQL is kept to the subset SQLite and PostgreSQL share.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
