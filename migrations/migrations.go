// Package migrations embeds the SQL schema migrations applied with goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory goose reads migrations from within FS.
const Dir = "."
