package store

import (
	"fmt"
	"time"
)

// ReplaceInbox atomically rewrites the inbox view with the entries of the
// latest snapshot, in order.
func (db *DB) ReplaceInbox(entries []InboxEntry) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM inbox`); err != nil {
		return fmt.Errorf("clear inbox: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, e := range entries {
		if _, err := tx.Exec(`
			INSERT INTO inbox (conversation_id, peer_name, last_message_preview, last_message_at, unread_count, position, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ConversationID, e.PeerName, truncate(e.LastPreview, 100), e.LastMessageAt, e.UnreadCount, i, now); err != nil {
			return fmt.Errorf("insert inbox row %q: %w", e.ConversationID, err)
		}
	}
	return tx.Commit()
}

// ListInbox returns the inbox view in snapshot order.
func (db *DB) ListInbox() ([]InboxEntry, error) {
	rows, err := db.Query(`
		SELECT conversation_id, peer_name, last_message_preview, last_message_at, unread_count, position
		FROM inbox
		ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []InboxEntry
	for rows.Next() {
		var e InboxEntry
		if err := rows.Scan(&e.ConversationID, &e.PeerName, &e.LastPreview, &e.LastMessageAt, &e.UnreadCount, &e.Position); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
