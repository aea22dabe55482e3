package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/tchatdev/tchat/internal/bus"
	"github.com/tchatdev/tchat/internal/gateway"
)

// mockBackend serves an in-memory conversation/message fixture.
type mockBackend struct {
	mu      gosync.Mutex
	convs   []gateway.Conversation
	msgs    map[string][]gateway.Message
	listErr error
	msgErr  map[string]error
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		msgs:   make(map[string][]gateway.Message),
		msgErr: make(map[string]error),
	}
}

func (m *mockBackend) ListConversations(_ context.Context, _ string) ([]gateway.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]gateway.Conversation, len(m.convs))
	copy(out, m.convs)
	return out, nil
}

func (m *mockBackend) ListMessages(_ context.Context, conversationID string) ([]gateway.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.msgErr[conversationID]; err != nil {
		return nil, err
	}
	src := m.msgs[conversationID]
	out := make([]gateway.Message, len(src))
	copy(out, src)
	return out, nil
}

func (m *mockBackend) addConv(id string, participants ...gateway.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs = append(m.convs, gateway.Conversation{ID: id, Participants: participants})
}

func (m *mockBackend) addMsg(convID, msgID, senderID string, at int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[convID] = append(m.msgs[convID], gateway.Message{
		ID:             msgID,
		ConversationID: convID,
		SenderID:       senderID,
		Text:           "msg " + msgID,
		CreatedAt:      time.UnixMilli(at),
	})
}

var (
	me   = gateway.User{ID: "u1", FirstName: "Me"}
	ana  = gateway.User{ID: "u2", FirstName: "Ana"}
	bob  = gateway.User{ID: "u3", FirstName: "Bob"}
	cleo = gateway.User{ID: "u4", FirstName: "Cleo"}
)

func ids(snap *Snapshot) []string {
	out := make([]string, len(snap.Entries))
	for i, e := range snap.Entries {
		out[i] = e.Conversation.ID
	}
	return out
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRefreshSortsByLastMessageDescending(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	be.addConv("c2", me, bob)
	be.addConv("c3", me, cleo) // no messages
	be.addConv("c4", me, ana)
	be.addMsg("c1", "m1", "u2", 1000)
	be.addMsg("c2", "m2", "u3", 3000)
	be.addMsg("c4", "m3", "u2", 2000)

	s := New(be, "u1", nil, nil)
	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	want := []string{"c2", "c4", "c1", "c3"}
	if got := ids(snap); !equalIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if snap.Entries[0].LastMessage == nil || snap.Entries[0].LastMessage.ID != "m2" {
		t.Errorf("c2 last message = %+v, want m2", snap.Entries[0].LastMessage)
	}
	if snap.Entries[3].LastMessage != nil {
		t.Error("messageless conversation has a last message")
	}
}

func TestMessagelessConversationsKeepRelativeOrder(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	be.addConv("c2", me, bob)
	be.addConv("c3", me, cleo)
	be.addMsg("c3", "m1", "u4", 1000)

	s := New(be, "u1", nil, nil)
	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(snap); !equalIDs(got, []string{"c3", "c1", "c2"}) {
		t.Fatalf("order = %v, want [c3 c1 c2]", got)
	}

	// The server list order flips, but the established relative order of
	// the messageless pair is preserved across refreshes.
	be.mu.Lock()
	be.convs[0], be.convs[1] = be.convs[1], be.convs[0]
	be.mu.Unlock()

	snap, err = s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(snap); !equalIDs(got, []string{"c3", "c1", "c2"}) {
		t.Errorf("order after reshuffle = %v, want [c3 c1 c2]", got)
	}
}

func TestEqualTimestampsKeepPreviousOrder(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	be.addConv("c2", me, bob)
	be.addMsg("c1", "m1", "u2", 1000)
	be.addMsg("c2", "m2", "u3", 1000)

	s := New(be, "u1", nil, nil)
	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(snap); !equalIDs(got, []string{"c1", "c2"}) {
		t.Fatalf("order = %v, want [c1 c2]", got)
	}

	be.mu.Lock()
	be.convs[0], be.convs[1] = be.convs[1], be.convs[0]
	be.mu.Unlock()

	snap, err = s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(snap); !equalIDs(got, []string{"c1", "c2"}) {
		t.Errorf("tie order = %v, want [c1 c2] (previous relative order)", got)
	}
}

func TestUnreadCountsOnlyNewMessagesFromOthers(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	be.addMsg("c1", "m1", "u2", 1000)

	s := New(be, "u1", nil, nil)

	// First observation establishes the baseline only.
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.UnreadCount("c1"); got != 0 {
		t.Errorf("unread after baseline = %d, want 0", got)
	}

	// Two new messages from the peer, one from ourselves.
	be.addMsg("c1", "m2", "u2", 2000)
	be.addMsg("c1", "m3", "u1", 2500)
	be.addMsg("c1", "m4", "u2", 3000)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.UnreadCount("c1"); got != 2 {
		t.Errorf("unread = %d, want 2 (own messages don't count)", got)
	}

	// Same messages again: no double counting.
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.UnreadCount("c1"); got != 2 {
		t.Errorf("unread after no-change refresh = %d, want 2", got)
	}

	// Counters accumulate across refreshes until reset.
	be.addMsg("c1", "m5", "u2", 4000)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.UnreadCount("c1"); got != 3 {
		t.Errorf("unread = %d, want 3", got)
	}
}

func TestMarkOpenedResetsToZero(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	be.addMsg("c1", "m1", "u2", 1000)

	s := New(be, "u1", nil, nil)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	be.addMsg("c1", "m2", "u2", 2000)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.UnreadCount("c1"); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}

	s.MarkOpened("c1")
	if got := s.UnreadCount("c1"); got != 0 {
		t.Errorf("unread after MarkOpened = %d, want 0", got)
	}
	// Idempotent, including for unknown conversations.
	s.MarkOpened("c1")
	s.MarkOpened("never-seen")
	if got := s.UnreadCount("c1"); got != 0 {
		t.Errorf("unread after repeated MarkOpened = %d, want 0", got)
	}
}

func TestUnreadEventPublished(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	be := newMockBackend()
	be.addConv("c1", me, ana)
	s := New(be, "u1", b, nil)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	be.addMsg("c1", "m1", "u2", 1000)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		delta, ok := evt.Payload.(UnreadDelta)
		if !ok {
			t.Fatalf("payload type = %T, want UnreadDelta", evt.Payload)
		}
		if delta.ConversationID != "c1" || delta.Added != 1 || delta.Total != 1 {
			t.Errorf("delta = %+v, want c1/1/1", delta)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for unread event")
	}
}

func TestListFailureRetainsPreviousSnapshot(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	be.addMsg("c1", "m1", "u2", 1000)

	s := New(be, "u1", nil, nil)
	first, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	be.mu.Lock()
	be.listErr = fmt.Errorf("connection refused")
	be.mu.Unlock()

	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() should report the list failure")
	}
	if got := s.Snapshot(); got != first {
		t.Error("failed refresh must retain the previous snapshot unchanged")
	}
}

func TestMessageFetchFailureDegradesOnlyThatConversation(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	be.addConv("c2", me, bob)
	be.addMsg("c1", "m1", "u2", 5000)
	be.addMsg("c2", "m2", "u3", 1000)

	s := New(be, "u1", nil, nil)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// c1's fetch starts failing while c2 gets new traffic.
	be.mu.Lock()
	be.msgErr["c1"] = fmt.Errorf("timeout")
	be.mu.Unlock()
	be.addMsg("c1", "m3", "u2", 9000) // invisible: fetch fails
	be.addMsg("c2", "m4", "u3", 6000)

	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() must not abort on a unit failure: %v", err)
	}

	c1 := snap.Entry("c1")
	if c1 == nil || !c1.Stale {
		t.Fatalf("c1 entry = %+v, want stale", c1)
	}
	if c1.LastMessage == nil || c1.LastMessage.ID != "m1" {
		t.Errorf("c1 last message = %+v, want carried-over m1", c1.LastMessage)
	}
	if got := s.UnreadCount("c1"); got != 0 {
		t.Errorf("stale entry bumped unread to %d, want 0", got)
	}

	c2 := snap.Entry("c2")
	if c2 == nil || c2.Stale || c2.LastMessage == nil || c2.LastMessage.ID != "m4" {
		t.Errorf("c2 entry = %+v, want fresh m4", c2)
	}
	if got := s.UnreadCount("c2"); got != 1 {
		t.Errorf("c2 unread = %d, want 1", got)
	}
}

func TestNewConversationAppearsWithoutRetroactiveUnread(t *testing.T) {
	be := newMockBackend()
	be.addConv("c1", me, ana)
	s := New(be, "u1", nil, nil)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A conversation with existing history shows up for the first time.
	be.addConv("c2", me, bob)
	be.addMsg("c2", "m1", "u3", 1000)
	be.addMsg("c2", "m2", "u3", 2000)

	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Entry("c2") == nil {
		t.Fatal("new conversation missing from snapshot")
	}
	if got := s.UnreadCount("c2"); got != 0 {
		t.Errorf("retroactive unread = %d, want 0 (baseline only)", got)
	}
}
