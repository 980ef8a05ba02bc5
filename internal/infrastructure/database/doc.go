// Package database provides SQLite connection management for PlantOps Core.
//
// This package manages:
//   - Opening the SQLite database with WAL mode and busy timeout pragmas
//   - Running embedded schema migrations in version order
//   - Health checks for the readiness endpoint
//
// # Concurrency
//
// SQLite supports one writer at a time. The pool is capped at a single open
// connection; telemetry ingestion, the liveness sweep and the alert dispatch
// worker all share it. The busy timeout pragma absorbs short contention.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
