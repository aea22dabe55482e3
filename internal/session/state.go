package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/tchatdev/tchat/internal/store"
)

// State holds the current user id, auth token and last-logout bookkeeping,
// persisted through the session store. It replaces the mutable
// module-level token of the mobile client: one State per session, passed
// explicitly to whoever needs it.
type State struct {
	mu sync.RWMutex
	db *store.DB

	token      string
	userID     string
	lastLogout time.Time
}

// LoadState reads persisted session state from the store.
func LoadState(db *store.DB) (*State, error) {
	s := &State{db: db}

	token, err := db.GetState(store.KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("load auth token: %w", err)
	}
	userID, err := db.GetState(store.KeyUserID)
	if err != nil {
		return nil, fmt.Errorf("load user id: %w", err)
	}
	lastLogout, err := db.GetState(store.KeyLastLogoutAt)
	if err != nil {
		return nil, fmt.Errorf("load last logout: %w", err)
	}

	s.token = token
	s.userID = userID
	if lastLogout != "" {
		if t, err := time.Parse(time.RFC3339, lastLogout); err == nil {
			s.lastLogout = t
		}
	}
	return s, nil
}

// Authenticated reports whether a usable token is present.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && !TokenExpired(s.token, time.Now())
}

// Token returns the stored bearer token, possibly empty.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID returns the current user id, possibly empty.
func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Login persists the token and user id issued by the server.
func (s *State) Login(token, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.SetState(store.KeyAuthToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.db.SetState(store.KeyUserID, userID); err != nil {
		return fmt.Errorf("persist user id: %w", err)
	}
	s.token = token
	s.userID = userID
	return nil
}

// Logout clears credentials and records the logout time.
func (s *State) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if err := s.db.SetState(store.KeyLastLogoutAt, now.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record logout time: %w", err)
	}
	if err := s.db.DeleteState(store.KeyAuthToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if err := s.db.DeleteState(store.KeyUserID); err != nil {
		return fmt.Errorf("clear user id: %w", err)
	}
	s.token = ""
	s.userID = ""
	s.lastLogout = now
	return nil
}

// SinceLastLogout returns the time elapsed since the last recorded logout.
// ok is false when no logout was ever recorded.
func (s *State) SinceLastLogout(now time.Time) (d time.Duration, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastLogout.IsZero() {
		return 0, false
	}
	return now.Sub(s.lastLogout), true
}

// FormatAway renders an away duration the way the mobile client did:
// "2h 5min", or "5min" below an hour.
func FormatAway(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}
