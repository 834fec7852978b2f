// Package migrations embeds the goose migrations of the remote evidence ledger.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
