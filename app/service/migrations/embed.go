package migrations

import "embed"

// FS contains the embedded SQLite migrations for session records.
//
//go:embed *.sql
var FS embed.FS
