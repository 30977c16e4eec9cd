package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sqlassist/sqlassist/internal/observability"
)

const DefaultIdleTTL = 2 * time.Hour

// Manager is the registry of live sessions, keyed by the ID carried in the
// session cookie.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
	newID    func() string
}

type Option func(*Manager)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

func NewManager(idleTTL time.Duration, opts ...Option) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	m := &Manager{
		sessions: map[string]*Session{},
		idleTTL:  idleTTL,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the live session for id, or a fresh one when id is empty,
// unknown or expired. An expired session that is still converting is kept.
// created reports whether a new cookie must be issued.
func (m *Manager) Resolve(id string) (sess *Session, created bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if existing, ok := m.sessions[id]; ok {
			if existing.Busy() || existing.idleSince(now) <= m.idleTTL {
				existing.touch(now)
				return existing, false
			}
			delete(m.sessions, id)
		}
	}

	sess = newSession(m.newID(), now)
	m.sessions[sess.ID] = sess
	observability.SetActiveSessions(len(m.sessions))
	return sess, true
}

// Sweep drops sessions idle for longer than the TTL. Busy sessions are kept
// until their conversion finishes.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if sess.Busy() || sess.idleSince(now) <= m.idleTTL {
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	observability.SetActiveSessions(len(m.sessions))
	return removed
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 && logger != nil {
				logger.Debug("expired idle sessions", slog.Int("removed", removed), slog.Int("active", m.Len()))
			}
		}
	}
}
