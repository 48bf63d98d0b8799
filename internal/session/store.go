// Package session holds per-user dashboard state between requests: the last
// search and its rows. A session is created on first use, replaced wholesale
// by each search and dropped after an idle timeout.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/star/closeapproach/internal/cad"
	"github.com/star/closeapproach/internal/metrics"
)

// Session is an immutable snapshot of one user's state. Store replaces the
// snapshot rather than mutating it, so a *Session can be read without locks.
type Session struct {
	ID        string
	Query     cad.Query
	Rows      cad.RowSet
	HasResult bool
	FetchedAt time.Time
	UpdatedAt time.Time
}

// BodyName returns the display name of the searched body.
func (s *Session) BodyName() string {
	return s.Query.Body.Name
}

// Unit returns the distance unit of the rows.
func (s *Session) Unit() cad.Unit {
	return s.Query.Unit
}

// Store provides thread-safe access to sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates a Store that expires sessions idle for longer than ttl.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the session for id and marks it used.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	touched := *sess
	touched.UpdatedAt = s.now()
	s.sessions[id] = &touched
	return &touched, true
}

// GetOrCreate returns the session for id, creating a fresh one with a new ID
// when id is empty or unknown.
func (s *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:        uuid.NewString(),
		Query:     cad.DefaultQuery(),
		UpdatedAt: s.now(),
	}
	s.sessions[sess.ID] = sess
	metrics.SetSessionsActive(len(s.sessions))
	return sess
}

// Replace stores the result of a search in session id, discarding any
// previous rows. An unknown id creates the session.
func (s *Store) Replace(id string, res *cad.Result) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:        id,
		Query:     res.Query,
		Rows:      res.Rows,
		HasResult: true,
		FetchedAt: res.FetchedAt,
		UpdatedAt: now,
	}
	s.sessions[id] = sess
	metrics.SetSessionsActive(len(s.sessions))
	return sess
}

// Clear drops the rows of session id after a failed search for q. The
// session keeps q so the filters survive, but HasResult is false until the
// next successful search. An unknown id creates the session.
func (s *Store) Clear(id string, q cad.Query) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:        id,
		Query:     q,
		UpdatedAt: s.now(),
	}
	s.sessions[id] = sess
	metrics.SetSessionsActive(len(s.sessions))
	return sess
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now-ttl and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	metrics.SetSessionsActive(len(s.sessions))
	return removed
}

// Start runs Sweep periodically until ctx is cancelled.
func (s *Store) Start(ctx context.Context) {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired idle sessions", "component", "session", "removed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
