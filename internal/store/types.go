package store

// Keys used in the session_state table.
const (
	KeyAuthToken    = "auth_token"
	KeyUserID       = "user_id"
	KeyLastLogoutAt = "last_logout_at"
)

// InboxEntry is one row of the daemon-maintained inbox view: a conversation
// with its peer's display name, last-message preview and unread count.
// Position preserves the synchronizer's sort order.
type InboxEntry struct {
	ConversationID string
	PeerName       string
	LastPreview    string
	LastMessageAt  int64
	UnreadCount    int
	Position       int
}
