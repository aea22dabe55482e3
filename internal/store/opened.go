package store

import (
	"fmt"
	"time"
)

// MarkOpened records that the user opened a conversation. The flag stays
// until the sync engine consumes it via TakeOpened.
func (db *DB) MarkOpened(conversationID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO opened_conversations (conversation_id, opened_at)
		VALUES (?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET opened_at = excluded.opened_at`,
		conversationID, now)
	return err
}

// TakeOpened returns and clears the set of conversation ids opened since the
// last call. Read-and-clear is a single transaction so a flag is never
// consumed twice or lost.
func (db *DB) TakeOpened() ([]string, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT conversation_id FROM opened_conversations ORDER BY opened_at ASC`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(ids) > 0 {
		if _, err := tx.Exec(`DELETE FROM opened_conversations`); err != nil {
			return nil, err
		}
	}
	return ids, tx.Commit()
}
