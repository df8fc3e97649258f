package store

import (
	"path/filepath"
	"testing"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "alyosha.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"conversations", "history", "memory", "notifications", "sync_state"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migrations: %v", table, err)
		}
	}
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alyosha.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	s1.Close()

	// A second open over the same file must skip already-applied versions.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 applied migrations, got %d", count)
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion int
		wantDesc    string
		wantOK      bool
	}{
		{"0001_conversations.sql", 1, "conversations", true},
		{"0042_answer.sql", 42, "answer", true},
		{"README.md", 0, "", false},
		{"nounderscore.sql", 0, "", false},
	}
	for _, tt := range tests {
		version, desc, ok := parseMigrationName(tt.name)
		if ok != tt.wantOK || version != tt.wantVersion || desc != tt.wantDesc {
			t.Errorf("parseMigrationName(%q) = (%d, %q, %v), want (%d, %q, %v)",
				tt.name, version, desc, ok, tt.wantVersion, tt.wantDesc, tt.wantOK)
		}
	}
}
