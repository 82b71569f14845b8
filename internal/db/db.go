// Package db stores challenge snapshot history in SQLite and exposes the
// admin surfaces (live SQL debugging, backup) over the debug mux.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/pace.report/internal/challenge"
)

type DB struct {
	*sql.DB

	// HistoryLimit caps the number of retained history entries; SaveEntry
	// prunes the oldest rows past this limit. Zero disables pruning.
	HistoryLimit int

	path string
}

func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite tuning: WAL keeps readers unblocked during saves and the busy
	// timeout rides out the occasional concurrent writer.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	_, err = sqlDB.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id         TEXT PRIMARY KEY,
			as_of      TIMESTAMP NOT NULL,
			saved_at   TIMESTAMP NOT NULL,
			teams      TEXT NOT NULL,
			constants  TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS history_as_of ON history (as_of);
	`)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{DB: sqlDB, HistoryLimit: challenge.HistoryLimit, path: path}, nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string {
	return db.path
}
