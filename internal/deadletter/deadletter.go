// Package deadletter persists a durable record of every ExceptionRecord the
// engine has raised, so an operator can inspect faults after a restart.
// Entries hold the fault's ID, kind, tier, message and time, not the work
// item itself, so faulted work cannot be replayed from the journal.
//
// This is deliberately narrower than "persistence of pending work" (which
// spec.md §5 rules out): the journal only records outcomes — items whose
// Execute already ran and failed, or teardown/loop anomalies — never an
// item still waiting to run. Losing the journal on disk loses history, not
// unfinished work.
//
// bbolt is chosen for the same reasons the teacher chose it for its index:
// pure Go, ACID, single file, no external process.
package deadletter

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/arikfeldman/tritier/pkg/tritier"
)

var bucketJournal = []byte("journal")

// ErrNotFound is returned by Get when no entry exists for the given ID.
var ErrNotFound = errors.New("deadletter: entry not found")

// Entry is the durable, JSON-serialisable form of a tritier.ExceptionRecord.
// Err is flattened to a string because errors do not round-trip through
// encoding/json.
type Entry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Tier       string    `json:"tier"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

func fromRecord(rec tritier.ExceptionRecord) Entry {
	msg := ""
	if rec.Err != nil {
		msg = rec.Err.Error()
	}
	return Entry{
		ID:         rec.ID,
		Kind:       string(rec.Kind),
		Tier:       rec.Tier,
		Message:    msg,
		OccurredAt: rec.OccurredAt,
	}
}

// Store is a bbolt-backed journal of ExceptionRecords.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the dead-letter journal at path.
func Open(path string) (*Store, error) {
	opts := &bbolt.Options{Timeout: 0} // zero: wait indefinitely for the file lock
	db, err := bbolt.Open(path, 0o640, opts)
	if err != nil {
		return nil, fmt.Errorf("deadletter: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJournal)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("deadletter: init bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends rec to the journal, keyed by its ID.
func (s *Store) Record(rec tritier.ExceptionRecord) error {
	entry := fromRecord(rec)
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("deadletter: marshal entry %s: %w", entry.ID, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketJournal).Put([]byte(entry.ID), val)
	})
}

// Get retrieves the journal entry for id, or ErrNotFound if it was never
// recorded (or has since been deleted).
func (s *Store) Get(id string) (Entry, error) {
	var entry Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(bucketJournal).Get([]byte(id))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, &entry)
	})
	return entry, err
}

// Delete removes the journal entry for id.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketJournal).Delete([]byte(id))
	})
}

// ForEach iterates over every journal entry, calling fn for each one.
// Iteration stops early if fn returns a non-nil error.
func (s *Store) ForEach(fn func(Entry) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketJournal).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			return fn(entry)
		})
	})
}

// Len returns the number of entries currently in the journal.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketJournal).Stats().KeyN
		return nil
	})
	return n, err
}

// Drain reads up to limit entries and removes them from the journal in the
// same transaction, so a crash between read and delete never duplicates or
// drops an entry.
func (s *Store) Drain(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		c := b.Cursor()
		var keys [][]byte
		for k, v := c.First(); k != nil && len(entries) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}
