// Package migrations embeds the PostgreSQL schema so binaries can migrate
// without shipping the SQL files alongside.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql pair in this directory.
//
//go:embed *.sql
var FS embed.FS
