package deadletter_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/arikfeldman/tritier/internal/deadletter"
	"github.com/arikfeldman/tritier/pkg/tritier"
)

func openStore(t *testing.T) *deadletter.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := deadletter.Open(path)
	if err != nil {
		t.Fatalf("deadletter.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openStore(t)
	now := time.Now()

	rec := tritier.ExceptionRecord{
		ID:         "exc-1",
		Kind:       tritier.ExceptionPerItem,
		Tier:       "fast",
		Err:        errors.New("execute failed"),
		OccurredAt: now,
	}
	if err := s.Record(rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entry, err := s.Get("exc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Tier != "fast" || entry.Kind != string(tritier.ExceptionPerItem) {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Message != "execute failed" {
		t.Fatalf("Message = %q, want %q", entry.Message, "execute failed")
	}
}

func TestStore_GetMissing_ReturnsErrNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.Get("does-not-exist"); !errors.Is(err, deadletter.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := openStore(t)
	_ = s.Record(tritier.ExceptionRecord{ID: "exc-1", Kind: tritier.ExceptionLoop, Tier: "slow", OccurredAt: time.Now()})

	if err := s.Delete("exc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("exc-1"); !errors.Is(err, deadletter.ErrNotFound) {
		t.Fatalf("expected entry to be gone after Delete, got %v", err)
	}
}

func TestStore_ForEach(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 3; i++ {
		id := "exc-" + string(rune('a'+i))
		_ = s.Record(tritier.ExceptionRecord{ID: id, Kind: tritier.ExceptionPerItem, Tier: "fast", OccurredAt: time.Now()})
	}

	seen := 0
	if err := s.ForEach(func(deadletter.Entry) error {
		seen++
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if seen != 3 {
		t.Fatalf("ForEach visited %d entries, want 3", seen)
	}
}

func TestStore_LenReflectsRecordedEntries(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 5; i++ {
		id := "exc-" + string(rune('a'+i))
		_ = s.Record(tritier.ExceptionRecord{ID: id, Kind: tritier.ExceptionPerItem, Tier: "fast", OccurredAt: time.Now()})
	}

	n, err := s.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 5 {
		t.Fatalf("Len = %d, want 5", n)
	}
}

func TestStore_DrainRemovesEntries(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 4; i++ {
		id := "exc-" + string(rune('a'+i))
		_ = s.Record(tritier.ExceptionRecord{ID: id, Kind: tritier.ExceptionPerItem, Tier: "fast", OccurredAt: time.Now()})
	}

	drained, err := s.Drain(2)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(drained) != 2 {
		t.Fatalf("Drain returned %d entries, want 2", len(drained))
	}

	n, err := s.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 2 {
		t.Fatalf("Len after Drain = %d, want 2", n)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := deadletter.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Record(tritier.ExceptionRecord{ID: "exc-persist", Kind: tritier.ExceptionTeardown, Tier: "engine", OccurredAt: time.Now()})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := deadletter.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	entry, err := s2.Get("exc-persist")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if entry.Tier != "engine" {
		t.Fatalf("entry.Tier = %q, want engine", entry.Tier)
	}
}
