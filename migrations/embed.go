// Package migrations holds the versioned SQL schema of the billing database.
package migrations

import "embed"

// FS contains every NNNNNN_name.{up,down}.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
