package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{APIURL: "https://chat.example.org/api", DefaultSession: "work", PollIntervalMs: 1500}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.APIURL != "https://chat.example.org/api" {
		t.Errorf("APIURL = %q, want %q", loaded.APIURL, "https://chat.example.org/api")
	}
	if loaded.PollInterval() != 1500*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 1.5s", loaded.PollInterval())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want default %q", loaded.APIURL, DefaultAPIURL)
	}
	if loaded.PollIntervalMs != DefaultPollIntervalMs {
		t.Errorf("PollIntervalMs = %d, want default %d", loaded.PollIntervalMs, DefaultPollIntervalMs)
	}
	if loaded.RequestTimeout() != 10*time.Second {
		t.Errorf("RequestTimeout() = %v, want 10s", loaded.RequestTimeout())
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
