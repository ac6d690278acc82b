// Package migrations holds the ledger schema for the Postgres table store.
// Files are applied by goose in timestamp order.
package migrations

import "embed"

// FS contains every *.sql migration.
//
//go:embed *.sql
var FS embed.FS
