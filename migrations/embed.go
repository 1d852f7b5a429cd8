// Package migrations embeds the error_log schema for each supported dialect.
package migrations

import "embed"

// FS holds the embedded SQL migration files, one directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
