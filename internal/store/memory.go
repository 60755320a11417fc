// internal/store/memory.go
//
// In-memory session store for running games.
//
// Characteristics:
//   - Stores *Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Errors are returned for missing session IDs on Get().

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/unscramble/internal/game"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("store: session not found")

// Session pairs a running engine with its bookkeeping.
type Session struct {
	ID      string
	Engine  *game.Engine
	Daily   bool   // seeded from the date, see internal/daily
	Date    string // YYYY-MM-DD for daily sessions
	Created time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// NewSession wraps e with a fresh activity timestamp.
func NewSession(id string, e *game.Engine, now time.Time) *Session {
	return &Session{ID: id, Engine: e, Created: now, lastSeen: now}
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store defines the persistence interface for game sessions.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Unknown IDs are not an error.
	Delete(ctx context.Context, id string) error

	// Sweep removes sessions idle since before cutoff and returns how many.
	Sweep(ctx context.Context, cutoff time.Time) int

	// Len reports the number of stored sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session)}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
