// Package database provides the SQLite store behind the local access journal.
//
// This package manages:
//   - The connection, with WAL mode so status API reads do not block appends
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is restricted to 0600
//   - Only pseudonymous tokens are stored; raw card UIDs never are
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Migrations are additive-only. Each version has an .up.sql and a .down.sql
// file named YYYYMMDD_HHMMSS_description.
package database
