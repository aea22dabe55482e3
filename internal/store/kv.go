package store

import (
	"database/sql"
	"time"
)

// SetState inserts or updates a session_state entry.
func (db *DB) SetState(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO session_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetState returns a session_state value, or "" when the key is absent.
func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// DeleteState removes a session_state entry. Missing keys are not an error.
func (db *DB) DeleteState(key string) error {
	_, err := db.Exec(`DELETE FROM session_state WHERE key = ?`, key)
	return err
}
