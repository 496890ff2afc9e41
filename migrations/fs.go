// Package migrations embeds the goose schema migrations so the binary can
// bring a fresh database up without external files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
