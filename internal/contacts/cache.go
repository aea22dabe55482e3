// Package contacts holds an in-memory snapshot of the user's contact list
// for fast membership testing during stranger detection.
package contacts

import (
	"context"
	"fmt"
	"sync"

	"github.com/tchatdev/tchat/internal/bus"
	"github.com/tchatdev/tchat/internal/gateway"
	"go.uber.org/zap"
)

// Directory is the remote side of the contact list.
type Directory interface {
	ListContacts(ctx context.Context, userID string) ([]gateway.Contact, error)
	AddContact(ctx context.Context, userID, contactUserID string) (*gateway.Contact, error)
	RenameContact(ctx context.Context, contactID, alias string) error
	RemoveContact(ctx context.Context, contactID string) error
}

// Cache is the contact set cache. Reload replaces the whole set; lookups
// never touch the network. A failed reload or mutation leaves the cached
// set unchanged.
type Cache struct {
	dir    Directory
	bus    *bus.Bus
	logger *zap.Logger
	userID string

	mu       sync.RWMutex
	byUserID map[string]gateway.Contact
	loaded   bool
}

// NewCache creates an empty cache for the given user.
func NewCache(dir Directory, userID string, b *bus.Bus, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		dir:      dir,
		bus:      b,
		logger:   logger,
		userID:   userID,
		byUserID: make(map[string]gateway.Contact),
	}
}

// Reload replaces the cached set with the server's current contact list.
// On failure the previous set is retained and the error surfaced.
func (c *Cache) Reload(ctx context.Context) error {
	list, err := c.dir.ListContacts(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("reload contacts: %w", err)
	}

	next := make(map[string]gateway.Contact, len(list))
	for _, ct := range list {
		next[ct.UserID] = ct
	}

	c.mu.Lock()
	c.byUserID = next
	c.loaded = true
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(bus.Event{Kind: bus.KindContactsReloaded, Payload: len(next)})
	}
	return nil
}

// IsContact reports whether the given user id is in the cached set. Pure
// lookup; never triggers network I/O.
func (c *Cache) IsContact(userID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byUserID[userID]
	return ok
}

// Get returns the cached contact entry for a user id.
func (c *Cache) Get(userID string) (gateway.Contact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.byUserID[userID]
	return ct, ok
}

// Len returns the number of cached contacts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byUserID)
}

// Loaded reports whether at least one reload has succeeded.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// All returns a copy of the cached contacts.
func (c *Cache) All() []gateway.Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gateway.Contact, 0, len(c.byUserID))
	for _, ct := range c.byUserID {
		out = append(out, ct)
	}
	return out
}

// Add performs the remote mutation then reloads. A failed mutation leaves
// the cache unchanged.
func (c *Cache) Add(ctx context.Context, contactUserID string) error {
	if _, err := c.dir.AddContact(ctx, c.userID, contactUserID); err != nil {
		return fmt.Errorf("add contact: %w", err)
	}
	c.logger.Info("contact added", zap.String("contact_user_id", contactUserID))
	return c.Reload(ctx)
}

// Remove deletes a contact entry remotely then reloads.
func (c *Cache) Remove(ctx context.Context, contactID string) error {
	if err := c.dir.RemoveContact(ctx, contactID); err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}
	return c.Reload(ctx)
}

// Rename sets a contact's alias remotely then reloads.
func (c *Cache) Rename(ctx context.Context, contactID, alias string) error {
	if err := c.dir.RenameContact(ctx, contactID, alias); err != nil {
		return fmt.Errorf("rename contact: %w", err)
	}
	return c.Reload(ctx)
}
