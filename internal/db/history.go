package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pace.report/internal/challenge"
)

// SaveEntry persists one history entry. Entries are keyed by as_of: saving a
// second snapshot for the same instant replaces the first rather than
// duplicating it. After the write, entries beyond HistoryLimit are pruned
// oldest-first. The stored entry (with its assigned ID and SavedAt) is
// returned.
func (db *DB) SaveEntry(entry challenge.HistoryEntry) (challenge.HistoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.SavedAt.IsZero() {
		entry.SavedAt = time.Now().UTC()
	}

	teamsJSON, err := json.Marshal(entry.Teams)
	if err != nil {
		return entry, fmt.Errorf("failed to encode teams: %w", err)
	}
	var constantsJSON sql.NullString
	if entry.Constants != nil {
		raw, err := json.Marshal(entry.Constants)
		if err != nil {
			return entry, fmt.Errorf("failed to encode constants: %w", err)
		}
		constantsJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = db.Exec(
		`INSERT INTO history (id, as_of, saved_at, teams, constants)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(as_of) DO UPDATE SET
			id = excluded.id,
			saved_at = excluded.saved_at,
			teams = excluded.teams,
			constants = excluded.constants`,
		entry.ID,
		entry.AsOf.UTC().Format(time.RFC3339Nano),
		entry.SavedAt.UTC().Format(time.RFC3339Nano),
		string(teamsJSON),
		constantsJSON,
	)
	if err != nil {
		return entry, fmt.Errorf("failed to save history entry: %w", err)
	}

	if db.HistoryLimit > 0 {
		_, err = db.Exec(
			`DELETE FROM history WHERE id NOT IN (
				SELECT id FROM history ORDER BY as_of DESC LIMIT ?
			)`, db.HistoryLimit)
		if err != nil {
			return entry, fmt.Errorf("failed to prune history: %w", err)
		}
	}

	return entry, nil
}

// History returns all retained entries ordered oldest first.
func (db *DB) History() ([]challenge.HistoryEntry, error) {
	rows, err := db.Query(
		`SELECT id, as_of, saved_at, teams, constants FROM history ORDER BY as_of ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []challenge.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// LatestEntry returns the most recent entry by as_of, or nil when the
// history is empty.
func (db *DB) LatestEntry() (*challenge.HistoryEntry, error) {
	rows, err := db.Query(
		`SELECT id, as_of, saved_at, teams, constants FROM history ORDER BY as_of DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	entry, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &entry, rows.Err()
}

// DeleteEntry removes one entry by ID. Missing IDs are not an error.
func (db *DB) DeleteEntry(id string) error {
	_, err := db.Exec(`DELETE FROM history WHERE id = ?`, id)
	return err
}

func scanEntry(rows *sql.Rows) (challenge.HistoryEntry, error) {
	var (
		entry         challenge.HistoryEntry
		asOf, savedAt string
		teamsJSON     string
		constantsJSON sql.NullString
	)
	if err := rows.Scan(&entry.ID, &asOf, &savedAt, &teamsJSON, &constantsJSON); err != nil {
		return entry, err
	}

	var err error
	if entry.AsOf, err = time.Parse(time.RFC3339Nano, asOf); err != nil {
		return entry, fmt.Errorf("failed to parse as_of for %s: %w", entry.ID, err)
	}
	if entry.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return entry, fmt.Errorf("failed to parse saved_at for %s: %w", entry.ID, err)
	}
	if err := json.Unmarshal([]byte(teamsJSON), &entry.Teams); err != nil {
		return entry, fmt.Errorf("failed to decode teams for %s: %w", entry.ID, err)
	}
	if constantsJSON.Valid {
		entry.Constants = &challenge.Constants{}
		if err := json.Unmarshal([]byte(constantsJSON.String), entry.Constants); err != nil {
			return entry, fmt.Errorf("failed to decode constants for %s: %w", entry.ID, err)
		}
	}

	return entry, nil
}
