package sync

import (
	"context"
	"time"

	"github.com/tchatdev/tchat/internal/contacts"
	"github.com/tchatdev/tchat/internal/gateway"
	"github.com/tchatdev/tchat/internal/status"
	"github.com/tchatdev/tchat/internal/store"
	"github.com/tchatdev/tchat/internal/stranger"
	"go.uber.org/zap"
)

// FlagStore is the slice of the local store the engine consumes: the
// opened-conversation signal and the inbox view it rewrites.
type FlagStore interface {
	TakeOpened() ([]string, error)
	ReplaceInbox(entries []store.InboxEntry) error
}

// EngineConfig carries the polling cadence.
type EngineConfig struct {
	PollInterval          time.Duration
	ContactInterval       time.Duration
	StrangerSweepInterval time.Duration
}

/// Engine drives the polling loop: conversation refreshes, contact reloads
// and stranger sweeps all run serially on one goroutine, so refreshes never
// overlap and a slow cycle simply absorbs the next tick.
type Engine struct {
	sync     *Synchronizer
	contacts *contacts.Cache
	detector *stranger.Detector
	flags    FlagStore
	machine  *status.Machine
	logger   *zap.Logger
	cfg      EngineConfig
	userID   string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates the polling engine.
func NewEngine(s *Synchronizer, c *contacts.Cache, d *stranger.Detector, flags FlagStore, m *status.Machine, cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sync:     s,
		contacts: c,
		detector: d,
		flags:    flags,
		machine:  m,
		logger:   logger,
		cfg:      cfg,
		userID:   s.userID,
	}
}

// Start begins polling. The first cycle runs immediately.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	if e.machine != nil {
		_ = e.machine.Transition(status.Syncing)
	}
	go e.loop(ctx)
}

// Stop cancels in-flight work and waits for the loop to exit.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	poll := time.NewTicker(e.cfg.PollInterval)
	defer poll.Stop()
	contactTick := time.NewTicker(e.cfg.ContactInterval)
	defer contactTick.Stop()
	sweep := time.NewTicker(e.cfg.StrangerSweepInterval)
	defer sweep.Stop()

	e.reloadContacts(ctx)
	e.tick(ctx)

	for {
		select {
		case <-poll.C:
			e.tick(ctx)
		case <-contactTick.C:
			e.reloadContacts(ctx)
			e.evaluateStrangers()
		case <-sweep.C:
			// Safety net: re-evaluate even without a fresh refresh.
			e.evaluateStrangers()
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one full cycle: consume opened flags, refresh, persist the
// inbox view, evaluate strangers.
func (e *Engine) tick(ctx context.Context) {
	opened, err := e.flags.TakeOpened()
	if err != nil {
		e.logger.Error("failed to read opened flags", zap.Error(err))
	}
	for _, id := range opened {
		e.sync.MarkOpened(id)
	}

	snap, err := e.sync.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn("refresh failed, serving previous snapshot", zap.Error(err))
		if e.machine != nil {
			if gateway.IsUnauthorized(err) {
				_ = e.machine.Transition(status.AuthRequired)
			} else {
				_ = e.machine.Transition(status.Degraded)
			}
		}
		return
	}
	if e.machine != nil {
		_ = e.machine.Transition(status.Ready)
	}

	if err := e.flags.ReplaceInbox(e.inboxEntries(snap)); err != nil {
		e.logger.Error("failed to write inbox view", zap.Error(err))
	}

	e.evaluateStrangers()
}

func (e *Engine) reloadContacts(ctx context.Context) {
	if err := e.contacts.Reload(ctx); err != nil && ctx.Err() == nil {
		e.logger.Warn("contact reload failed, keeping previous set", zap.Error(err))
	}
}

func (e *Engine) evaluateStrangers() {
	e.detector.Evaluate(Observations(e.sync.Snapshot(), e.userID))
}

// Observations projects a snapshot into the detector's input, preserving
// snapshot order.
func Observations(snap *Snapshot, userID string) []stranger.Observation {
	if snap == nil {
		return nil
	}
	obs := make([]stranger.Observation, 0, len(snap.Entries))
	for _, entry := range snap.Entries {
		peer, ok := entry.Conversation.Peer(userID)
		if !ok {
			continue
		}
		obs = append(obs, stranger.Observation{
			ConversationID: entry.Conversation.ID,
			Peer:           peer,
		})
	}
	return obs
}

// inboxEntries projects a snapshot into the persisted inbox view, resolving
// peer display names through the contact cache: alias, then profile name,
// then phone.
func (e *Engine) inboxEntries(snap *Snapshot) []store.InboxEntry {
	entries := make([]store.InboxEntry, 0, len(snap.Entries))
	for _, se := range snap.Entries {
		ie := store.InboxEntry{
			ConversationID: se.Conversation.ID,
			UnreadCount:    e.sync.UnreadCount(se.Conversation.ID),
		}
		if peer, ok := se.Conversation.Peer(e.userID); ok {
			ie.PeerName = peer.DisplayName()
			if ct, ok := e.contacts.Get(peer.ID); ok && ct.Alias != "" {
				ie.PeerName = ct.Alias
			}
		}
		if se.LastMessage != nil {
			ie.LastPreview = se.LastMessage.Text
			ie.LastMessageAt = se.LastMessage.CreatedAt.UnixMilli()
		}
		entries = append(entries, ie)
	}
	return entries
}
