// Package composer handles sending text into one open conversation with
// immediate local feedback: optimistic insert, then server reconciliation.
package composer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tchatdev/tchat/internal/bus"
	"github.com/tchatdev/tchat/internal/gateway"
	"go.uber.org/zap"
)

// Sender is the remote message-create call.
type Sender interface {
	CreateMessage(ctx context.Context, conversationID, senderID, text string) (*gateway.Message, error)
}

const tempIDPrefix = "local-"

// Composer owns the visible message list of one open conversation.
type Composer struct {
	sender         Sender
	bus            *bus.Bus
	logger         *zap.Logger
	conversationID string
	senderID       string

	mu       sync.Mutex
	messages []gateway.Message
}

// New creates a composer for one conversation.
func New(sender Sender, conversationID, senderID string, b *bus.Bus, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		sender:         sender,
		bus:            b,
		logger:         logger,
		conversationID: conversationID,
		senderID:       senderID,
	}
}

// Messages returns a copy of the visible list.
func (c *Composer) Messages() []gateway.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]gateway.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Load replaces the visible list with fetched history, keeping any
// optimistic entries that have not been reconciled yet so an in-flight send
// never disappears from view.
func (c *Composer) Load(history []gateway.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]gateway.Message, len(history))
	copy(next, history)
	for _, m := range c.messages {
		if strings.HasPrefix(m.ID, tempIDPrefix) {
			next = append(next, m)
		}
	}
	c.messages = next
}

// SendAck is the bus payload for a reconciled send.
type SendAck struct {
	ConversationID string
	TempID         string
	ServerID       string
}

// SendFailure is the bus payload for a failed send.
type SendFailure struct {
	ConversationID string
	TempID         string
	Err            string
}

// Send appends the text optimistically, posts it, and reconciles the local
// entry with the server record, matched by the temporary id rather than
// content. Whitespace-only text is a no-op, not an error. On failure the
// optimistic entry is removed entirely; no ghost message remains. Each call
// is independent; rapid identical sends are not de-duplicated.
func (c *Composer) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	local := gateway.Message{
		ID:             tempIDPrefix + uuid.NewString(),
		ConversationID: c.conversationID,
		SenderID:       c.senderID,
		Text:           trimmed,
		CreatedAt:      time.Now(),
	}

	c.mu.Lock()
	c.messages = append(c.messages, local)
	c.mu.Unlock()

	server, err := c.sender.CreateMessage(ctx, c.conversationID, c.senderID, trimmed)
	if err != nil {
		c.remove(local.ID)
		if c.bus != nil {
			c.bus.Publish(bus.Event{Kind: bus.KindSendFailed, Payload: SendFailure{
				ConversationID: c.conversationID,
				TempID:         local.ID,
				Err:            err.Error(),
			}})
		}
		return fmt.Errorf("send message: %w", err)
	}

	c.reconcile(local.ID, *server)
	if c.bus != nil {
		c.bus.Publish(bus.Event{Kind: bus.KindSendAck, Payload: SendAck{
			ConversationID: c.conversationID,
			TempID:         local.ID,
			ServerID:       server.ID,
		}})
	}
	return nil
}

func (c *Composer) remove(tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.messages[:0]
	for _, m := range c.messages {
		if m.ID != tempID {
			kept = append(kept, m)
		}
	}
	c.messages = kept
}

func (c *Composer) reconcile(tempID string, server gateway.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == tempID {
			c.messages[i] = server
			return
		}
	}
	// The optimistic entry vanished (e.g. a Load raced the reply); keep
	// exactly one copy of the confirmed message.
	for i := range c.messages {
		if c.messages[i].ID == server.ID {
			return
		}
	}
	c.messages = append(c.messages, server)
}
