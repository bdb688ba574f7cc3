package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndReadDay(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	defer log.Close()

	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	entry := Entry{
		Timestamp: ts,
		Principal: "alice",
		ToolName:  "run_command",
		Decision:  "confirmed",
		Success:   true,
	}
	if err := log.Append(entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := ReadDay(dir, "2026-03-05")
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Principal != "alice" {
		t.Errorf("principal = %s, want alice", entries[0].Principal)
	}
	if entries[0].ID == "" {
		t.Error("expected ID to be assigned")
	}
}

func TestAppendRotatesAcrossDays(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	defer log.Close()

	day1 := time.Date(2026, 3, 5, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 6, 0, 1, 0, 0, time.UTC)

	if err := log.Append(Entry{Timestamp: day1, Principal: "a", ToolName: "t", Decision: "safe", Success: true}); err != nil {
		t.Fatal(err)
	}
	if err := log.Append(Entry{Timestamp: day2, Principal: "b", ToolName: "t", Decision: "safe", Success: true}); err != nil {
		t.Fatal(err)
	}

	e1, _ := ReadDay(dir, "2026-03-05")
	e2, _ := ReadDay(dir, "2026-03-06")
	if len(e1) != 1 || len(e2) != 1 {
		t.Fatalf("expected one entry per day, got %d and %d", len(e1), len(e2))
	}
}

func TestReadDayMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	entries, err := ReadDay(dir, "1999-01-01")
	if err != nil {
		t.Fatalf("ReadDay should tolerate a missing file: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestIndexMirrorAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenIndex(path)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer idx.Close()

	ctx := t.Context()
	now := time.Now().UTC()
	entries := []Entry{
		{ID: "1", Timestamp: now, Principal: "alice", ToolName: "read_file", Decision: "safe", Success: true},
		{ID: "2", Timestamp: now, Principal: "alice", ToolName: "run_command", Decision: "confirmed", Success: true},
		{ID: "3", Timestamp: now, Principal: "bob", ToolName: "run_command", Decision: "rejected", Success: false},
	}
	for _, e := range entries {
		if err := idx.Mirror(ctx, e); err != nil {
			t.Fatalf("Mirror: %v", err)
		}
	}

	recent, err := idx.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent entries, got %d", len(recent))
	}

	alice, err := idx.ForPrincipal(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ForPrincipal: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("expected 2 entries for alice, got %d", len(alice))
	}

	stats, err := idx.TopPrincipals(ctx, now.Add(-time.Hour), 5)
	if err != nil {
		t.Fatalf("TopPrincipals: %v", err)
	}
	if len(stats) == 0 || stats[0].Principal != "alice" {
		t.Fatalf("expected alice to be the top principal, got %+v", stats)
	}
}
