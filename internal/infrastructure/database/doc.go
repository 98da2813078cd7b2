// Package database provides SQLite persistence for the RS-485 bridge.
//
// The bridge keeps a small local database for device state history so
// changes remain auditable even when the time-series backend is down.
// The package wraps database/sql with connection setup tuned for SQLite
// (WAL mode, busy timeout, single writer) and a schema bootstrap that
// brings the file up to the current version on startup.
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        "/var/lib/rs485-bridge/bridge.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Bootstrap(ctx); err != nil {
//	    return err
//	}
package database
