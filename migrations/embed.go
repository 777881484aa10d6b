// Package migrations holds the Postgres schema of the record store.
package migrations

import "embed"

// FS contains the numbered .sql files, applied in version order.
//
//go:embed *.sql
var FS embed.FS
