// Package migrations embeds the Postgres schema of the run history.
package migrations

import "embed"

// FS contiene las migraciones, aplicadas en orden de nombre.
//
//go:embed *.sql
var FS embed.FS
