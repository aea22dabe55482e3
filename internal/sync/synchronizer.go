// Package sync maintains the client's view of conversations: a sorted,
// de-duplicated snapshot refreshed by polling, with derived unread counts.
package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/tchatdev/tchat/internal/bus"
	"github.com/tchatdev/tchat/internal/gateway"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend is the remote side of conversation synchronization.
type Backend interface {
	ListConversations(ctx context.Context, userID string) ([]gateway.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]gateway.Message, error)
}

// Entry is one conversation within a snapshot.
type Entry struct {
	Conversation gateway.Conversation
	Messages     []gateway.Message
	LastMessage  *gateway.Message
	// Stale marks an entry whose message fetch failed this refresh; its
	// Messages/LastMessage are carried over from the previous snapshot.
	Stale bool
}

// Snapshot is an immutable point-in-time view of all conversations.
// Callers must not mutate it.
type Snapshot struct {
	TakenAt time.Time
	Entries []Entry
}

// Entry returns the snapshot entry for a conversation id, or nil.
func (s *Snapshot) Entry(conversationID string) *Entry {
	if s == nil {
		return nil
	}
	for i := range s.Entries {
		if s.Entries[i].Conversation.ID == conversationID {
			return &s.Entries[i]
		}
	}
	return nil
}

// UnreadDelta is the bus payload published when a conversation's unread
// counter increases.
type UnreadDelta struct {
	ConversationID string
	Added          int
	Total          int
}

const defaultFanout = 8

// Synchronizer owns the snapshot and the unread counters. All mutation goes
// through Refresh and MarkOpened under a single lock, so readers never see
// a torn snapshot.
type Synchronizer struct {
	backend Backend
	bus     *bus.Bus
	logger  *zap.Logger
	userID  string
	fanout  int

	mu      gosync.Mutex
	current *Snapshot
	unread  map[string]int
}

// New creates a synchronizer for the given user.
func New(backend Backend, userID string, b *bus.Bus, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		backend: backend,
		bus:     b,
		logger:  logger,
		userID:  userID,
		fanout:  defaultFanout,
		unread:  make(map[string]int),
	}
}

// Snapshot returns the latest snapshot, or nil before the first successful
// refresh.
func (s *Synchronizer) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// UnreadCount returns the unread counter for a conversation.
func (s *Synchronizer) UnreadCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[conversationID]
}

// MarkOpened resets a conversation's unread counter to exactly 0.
// Idempotent; unknown ids are fine.
func (s *Synchronizer) MarkOpened(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, conversationID)
}

// Refresh fetches the conversation list and every conversation's messages,
// then atomically installs the new snapshot and unread deltas. On list
// failure the previous snapshot is retained unchanged and the error
// returned. A single conversation's message-fetch failure degrades only
// that entry (carried over stale) and never aborts the refresh.
func (s *Synchronizer) Refresh(ctx context.Context) (*Snapshot, error) {
	convs, err := s.backend.ListConversations(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("refresh conversations: %w", err)
	}

	prev := s.Snapshot()

	// Fan-out message fetches; completions are unordered but the snapshot
	// swap waits for all of them.
	results := make([][]gateway.Message, len(convs))
	fetchErrs := make([]error, len(convs))
	var g errgroup.Group
	g.SetLimit(s.fanout)
	for i := range convs {
		i := i
		g.Go(func() error {
			msgs, err := s.backend.ListMessages(ctx, convs[i].ID)
			if err != nil {
				fetchErrs[i] = err
				return nil
			}
			sort.SliceStable(msgs, func(a, b int) bool {
				return msgs[a].CreatedAt.Before(msgs[b].CreatedAt)
			})
			results[i] = msgs
			return nil
		})
	}
	_ = g.Wait()

	entries := s.assemble(prev, convs, results, fetchErrs)
	sortEntries(entries)

	snap := &Snapshot{TakenAt: time.Now(), Entries: entries}

	// Unread deltas and the snapshot swap are one atomic step.
	var deltas []UnreadDelta
	s.mu.Lock()
	for i := range entries {
		e := &entries[i]
		if e.Stale {
			continue
		}
		prevEntry := prev.Entry(e.Conversation.ID)
		if prevEntry == nil {
			// First observation establishes the baseline only; no
			// retroactive unread count.
			continue
		}
		added := s.countNew(prevEntry, e)
		if added > 0 {
			s.unread[e.Conversation.ID] += added
			deltas = append(deltas, UnreadDelta{
				ConversationID: e.Conversation.ID,
				Added:          added,
				Total:          s.unread[e.Conversation.ID],
			})
		}
	}
	s.current = snap
	s.mu.Unlock()

	if s.bus != nil {
		for _, d := range deltas {
			s.bus.Publish(bus.Event{Kind: bus.KindUnreadIncreased, Payload: d})
		}
		s.bus.Publish(bus.Event{Kind: bus.KindSyncRefreshed, Payload: len(entries)})
	}
	return snap, nil
}

// assemble builds the unsorted entry list. Conversations known from the
// previous snapshot come first, in their previous relative order, so the
// stable sort breaks ties the way the user last saw them.
func (s *Synchronizer) assemble(prev *Snapshot, convs []gateway.Conversation, results [][]gateway.Message, fetchErrs []error) []Entry {
	byID := make(map[string]int, len(convs))
	for i, c := range convs {
		byID[c.ID] = i
	}

	order := make([]int, 0, len(convs))
	taken := make(map[int]bool, len(convs))
	if prev != nil {
		for _, pe := range prev.Entries {
			if i, ok := byID[pe.Conversation.ID]; ok && !taken[i] {
				order = append(order, i)
				taken[i] = true
			}
		}
	}
	for i := range convs {
		if !taken[i] {
			order = append(order, i)
		}
	}

	entries := make([]Entry, 0, len(convs))
	for _, i := range order {
		e := Entry{Conversation: convs[i]}
		if fetchErrs[i] != nil {
			s.logger.Warn("message fetch failed, keeping previous data",
				zap.String("conversation_id", convs[i].ID),
				zap.Error(fetchErrs[i]))
			e.Stale = true
			if pe := prev.Entry(convs[i].ID); pe != nil {
				e.Messages = pe.Messages
				e.LastMessage = pe.LastMessage
			}
		} else {
			e.Messages = results[i]
			if n := len(results[i]); n > 0 {
				e.LastMessage = &results[i][n-1]
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// countNew counts messages present in cur but not in prevEntry (by id) that
// were sent by someone else.
func (s *Synchronizer) countNew(prevEntry, cur *Entry) int {
	known := make(map[string]struct{}, len(prevEntry.Messages))
	for _, m := range prevEntry.Messages {
		known[m.ID] = struct{}{}
	}
	added := 0
	for _, m := range cur.Messages {
		if _, ok := known[m.ID]; ok {
			continue
		}
		if m.SenderID != s.userID {
			added++
		}
	}
	return added
}

// sortEntries orders by last-message time descending, conversations without
// any message after all that have one. The sort is stable, so ties keep the
// pre-established (previous snapshot) relative order.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].LastMessage, entries[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a != nil:
			return true
		default:
			return false
		}
	})
}
