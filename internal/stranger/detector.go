// Package stranger flags conversations whose other participant is not yet
// a contact, surfacing a single add-contact prompt at a time.
package stranger

import (
	"context"
	"fmt"
	"sync"

	"github.com/tchatdev/tchat/internal/bus"
	"github.com/tchatdev/tchat/internal/gateway"
	"go.uber.org/zap"
)

// Observation is one conversation as seen by the detector: the id plus the
// participant who is not the current user. Observations arrive in snapshot
// sort order.
type Observation struct {
	ConversationID string
	Peer           gateway.User
}

// ContactSet is the membership view the detector checks candidates against.
type ContactSet interface {
	IsContact(userID string) bool
	Len() int
	Loaded() bool
	Add(ctx context.Context, contactUserID string) error
}

// Prompt is the pending add-contact question. At most one exists at a time;
// it is cleared on accept, decline, or restart.
type Prompt struct {
	ConversationID string
	Candidate      gateway.User
}

// Detector owns the per-conversation "already checked" marker set. A
// conversation is evaluated at most once per checked-set epoch; the set is
// cleared when a contact disappears or a never-seen conversation shows up.
type Detector struct {
	contacts ContactSet
	bus      *bus.Bus
	logger   *zap.Logger

	mu           sync.Mutex
	checked      map[string]struct{}
	seen         map[string]struct{}
	lastCount    int
	countTracked bool
	pending      *Prompt
}

// New creates a detector backed by the given contact set.
func New(contacts ContactSet, b *bus.Bus, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		contacts: contacts,
		bus:      b,
		logger:   logger,
		checked:  make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Evaluate runs one detection pass over the current conversations. It is a
// no-op until the contact set has loaded once, so an empty not-yet-fetched
// set doesn't flag every peer as a stranger.
func (d *Detector) Evaluate(observations []Observation) {
	if !d.contacts.Loaded() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Clear triggers: a net decrease in contact count, or a conversation
	// never observed before.
	count := d.contacts.Len()
	if d.countTracked && count < d.lastCount {
		d.checked = make(map[string]struct{})
	}
	d.lastCount = count
	d.countTracked = true

	for _, obs := range observations {
		if _, ok := d.seen[obs.ConversationID]; !ok {
			d.seen[obs.ConversationID] = struct{}{}
			d.checked = make(map[string]struct{})
		}
	}

	for _, obs := range observations {
		if _, ok := d.checked[obs.ConversationID]; ok {
			continue
		}
		d.checked[obs.ConversationID] = struct{}{}

		if obs.Peer.ID == "" || d.contacts.IsContact(obs.Peer.ID) {
			continue
		}
		if d.pending != nil {
			continue
		}
		d.pending = &Prompt{ConversationID: obs.ConversationID, Candidate: obs.Peer}
		d.logger.Info("stranger detected",
			zap.String("conversation_id", obs.ConversationID),
			zap.String("candidate_id", obs.Peer.ID))
		if d.bus != nil {
			d.bus.Publish(bus.Event{Kind: bus.KindStrangerDetected, Payload: *d.pending})
		}
	}
}

// Pending returns a copy of the pending prompt, or nil.
func (d *Detector) Pending() *Prompt {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	p := *d.pending
	return &p
}

// Accept adds the candidate to the contact list and clears the prompt. The
// prompt survives a failed add so the user can retry.
func (d *Detector) Accept(ctx context.Context) error {
	p := d.Pending()
	if p == nil {
		return fmt.Errorf("no pending stranger prompt")
	}
	if err := d.contacts.Add(ctx, p.Candidate.ID); err != nil {
		return fmt.Errorf("accept stranger: %w", err)
	}
	d.clearPending(*p, true)
	return nil
}

// Decline clears the prompt without touching contacts.
func (d *Detector) Decline() {
	p := d.Pending()
	if p == nil {
		return
	}
	d.clearPending(*p, false)
}

func (d *Detector) clearPending(p Prompt, accepted bool) {
	d.mu.Lock()
	if d.pending != nil && d.pending.ConversationID == p.ConversationID {
		d.pending = nil
	}
	d.mu.Unlock()

	if d.bus != nil {
		d.bus.Publish(bus.Event{Kind: bus.KindStrangerResolved, Payload: Resolution{
			Prompt:   p,
			Accepted: accepted,
		}})
	}
}

// Resolution is the bus payload emitted when a prompt is accepted or declined.
type Resolution struct {
	Prompt   Prompt
	Accepted bool
}
