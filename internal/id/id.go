// Package id issues the identifiers signalsim stores in its journals: one
// per run (engine run or manual session) and one per ledger transaction.
// They are ULIDs, so a journal ordered by id is ordered by creation time,
// and ids issued by one process never repeat or go backwards, even within
// the same millisecond.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Source issues monotonic ids from its own entropy and clock.
type Source struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewSource reads randomness from entropy and timestamps ids with now.
// A nil now means time.Now.
func NewSource(entropy io.Reader, now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{entropy: ulid.Monotonic(entropy, 0), now: now}
}

// New returns the next id. It panics when the entropy source fails or the
// monotonic counter overflows inside one millisecond.
func (s *Source) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(s.now().UTC()), s.entropy)
	if err != nil {
		panic(err)
	}
	return id.String()
}

var std = NewSource(rand.Reader, nil)

// New returns a fresh run or transaction id.
func New() string { return std.New() }

// Valid reports whether s parses as an id.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time is the creation time encoded in an id.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()).UTC(), nil
}
