// Package db embeds the Postgres schema migrations.
package db

import "embed"

//go:embed pg/*.sql
var Postgres embed.FS

// PostgresDir is the directory of Postgres inside the embedded filesystem.
const PostgresDir = "pg"
