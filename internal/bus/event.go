package bus

import "time"

// Event is a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the client core. Subscribers filter by
// namespace prefix, e.g. "message." matches both send kinds.
const (
	KindStatusChanged    = "session.status_changed"
	KindSyncRefreshed    = "sync.refreshed"
	KindUnreadIncreased  = "conversation.unread"
	KindContactsReloaded = "contact.reloaded"
	KindStrangerDetected = "stranger.detected"
	KindStrangerResolved = "stranger.resolved"
	KindSendAck          = "message.send_ack"
	KindSendFailed       = "message.send_failed"
)
