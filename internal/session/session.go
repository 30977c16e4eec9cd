// Package session keeps the per-browser state of the form: its schema, the
// last generated query, the last error and whether a conversion is running.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sqlassist/sqlassist/internal/schema"
)

type Session struct {
	ID     string
	Schema *schema.Store

	busy atomic.Bool

	mu        sync.Mutex
	lastQuery string
	lastError string
	createdAt time.Time
	lastSeen  time.Time
}

// State is a point-in-time copy of a Session for rendering.
type State struct {
	ID        string    `json:"session_id"`
	LastQuery string    `json:"last_query"`
	LastError string    `json:"last_error,omitempty"`
	Busy      bool      `json:"busy"`
	Tables    int       `json:"table_count"`
	CreatedAt time.Time `json:"created_at"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Schema:    schema.NewStore(),
		createdAt: now,
		lastSeen:  now,
	}
}

// TryBegin marks the session busy. It returns false when a conversion is
// already running; the caller must not start another one.
func (s *Session) TryBegin() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) End() {
	s.busy.Store(false)
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}

// RecordSuccess replaces the displayed query and clears the last error.
func (s *Session) RecordSuccess(query string) {
	s.mu.Lock()
	s.lastQuery = query
	s.lastError = ""
	s.mu.Unlock()
}

// RecordFailure keeps the previous query visible next to the new error.
func (s *Session) RecordFailure(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:        s.ID,
		LastQuery: s.lastQuery,
		LastError: s.lastError,
		Busy:      s.busy.Load(),
		Tables:    s.Schema.Len(),
		CreatedAt: s.createdAt,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
