// Package migrations embeds the SQL schema for the local access journal.
//
// The files are compiled into the binary so a door endpoint needs nothing
// on disk besides its config and database file.
package migrations

import "embed"

// FS holds every *.sql migration at its root. Pass it to
// (*database.DB).Migrate.
//
//go:embed *.sql
var FS embed.FS
