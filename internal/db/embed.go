package db

import "embed"

// EmbedMigrations contains the embedded SQL migration files, one directory
// per dialect.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var EmbedMigrations embed.FS
