package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tchatdev/tchat/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStateLoginPersists(t *testing.T) {
	db := testDB(t)

	s, err := LoadState(db)
	if err != nil {
		t.Fatal(err)
	}
	if s.UserID() != "" {
		t.Errorf("fresh state user id = %q, want empty", s.UserID())
	}

	if err := s.Login("tok-1", "u1"); err != nil {
		t.Fatal(err)
	}
	if s.Token() != "tok-1" || s.UserID() != "u1" {
		t.Errorf("state = %q/%q, want tok-1/u1", s.Token(), s.UserID())
	}

	// A state reloaded from the same store sees the credentials.
	reloaded, err := LoadState(db)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Token() != "tok-1" || reloaded.UserID() != "u1" {
		t.Errorf("reloaded = %q/%q, want tok-1/u1", reloaded.Token(), reloaded.UserID())
	}
}

func TestStateLogoutRecordsTime(t *testing.T) {
	db := testDB(t)
	s, err := LoadState(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Login("tok-1", "u1"); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.SinceLastLogout(time.Now()); ok {
		t.Error("SinceLastLogout before any logout should report ok=false")
	}

	if err := s.Logout(); err != nil {
		t.Fatal(err)
	}
	if s.Token() != "" || s.UserID() != "" {
		t.Error("credentials not cleared on logout")
	}

	d, ok := s.SinceLastLogout(time.Now().Add(2*time.Hour + 5*time.Minute))
	if !ok {
		t.Fatal("SinceLastLogout after logout should report ok=true")
	}
	if got := FormatAway(d); got != "2h 5min" {
		t.Errorf("FormatAway = %q, want 2h 5min", got)
	}

	// Survives a reload.
	reloaded, err := LoadState(db)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.SinceLastLogout(time.Now()); !ok {
		t.Error("reloaded state lost the logout timestamp")
	}
	if reloaded.Authenticated() {
		t.Error("reloaded state still authenticated after logout")
	}
}

func TestFormatAway(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Minute, "5min"},
		{0, "0min"},
		{90 * time.Minute, "1h 30min"},
		{25 * time.Hour, "25h 0min"},
	}
	for _, tt := range tests {
		if got := FormatAway(tt.d); got != tt.want {
			t.Errorf("FormatAway(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
