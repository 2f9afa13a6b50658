// Package migrations embeds the SQL migration files for the migrate command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
