// Package migrations embeds the ordered SQL schema files.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
