// Package session holds the client's read cache of chat sessions and the
// ordered message log of each session.
package session

import (
	"context"
	"sync"

	"github.com/Rrens/apex-chat/internal/domain"
)

// Store caches sessions and per-session message logs.
// Logs are append-only; the backend stays the source of truth for sessions.
type Store struct {
	service domain.SessionService

	mu       sync.RWMutex
	sessions []domain.ChatSession
	logs     map[string][]domain.Message
	// ready marks logs that were created locally or filled from history
	ready map[string]bool
	// local holds created sessions the backend has not listed yet
	local map[string]bool
}

// NewStore creates an empty store backed by the given session service
func NewStore(service domain.SessionService) *Store {
	return &Store{
		service: service,
		logs:    make(map[string][]domain.Message),
		ready:   make(map[string]bool),
		local:   make(map[string]bool),
	}
}

// Refresh replaces the cached session list with the backend's.
// Sessions created locally that the backend does not list yet are kept at the end;
// any other session missing from the backend's list is dropped.
func (s *Store) Refresh(ctx context.Context) ([]domain.ChatSession, error) {
	remote, err := s.service.ListSessions(ctx)
	if err != nil {
		return nil, &domain.FetchError{Op: "list", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(remote))
	merged := make([]domain.ChatSession, 0, len(remote))
	for _, sess := range remote {
		if sess.ID == "" || seen[sess.ID] {
			continue
		}
		seen[sess.ID] = true
		delete(s.local, sess.ID)
		merged = append(merged, sess)
	}
	for _, sess := range s.sessions {
		if !seen[sess.ID] && s.local[sess.ID] {
			merged = append(merged, sess)
		}
	}
	s.sessions = merged

	return cloneSessions(merged), nil
}

// ListSessions returns the cached sessions in order
func (s *Store) ListSessions() []domain.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSessions(s.sessions)
}

// Session returns a cached session by id
func (s *Store) Session(id string) (domain.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return domain.ChatSession{}, false
}

// CreateSession creates a session on the backend, caches it and
// initializes its empty log
func (s *Store) CreateSession(ctx context.Context, title string) (domain.ChatSession, error) {
	if title == "" {
		title = domain.DefaultSessionTitle
	}

	created, err := s.service.CreateSession(ctx, title)
	if err != nil {
		return domain.ChatSession{}, &domain.FetchError{Op: "create", Err: err}
	}

	sess := *created
	if sess.Title == "" {
		sess.Title = title
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.sessions {
		if s.sessions[i].ID == sess.ID {
			s.sessions[i] = sess
			found = true
			break
		}
	}
	if !found {
		s.sessions = append(s.sessions, sess)
		s.local[sess.ID] = true
	}
	if _, ok := s.logs[sess.ID]; !ok {
		s.logs[sess.ID] = []domain.Message{}
	}
	s.ready[sess.ID] = true

	return sess, nil
}

// HasLog reports whether the session's log is initialized, even if empty.
// Replies appended to a session that was never opened do not initialize it.
func (s *Store) HasLog(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready[id]
}

// GetLog returns a copy of the session's log, empty if none was loaded
func (s *Store) GetLog(id string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.logs[id])
}

// AppendMessage appends to the session's log. No deduplication is performed.
func (s *Store) AppendMessage(id string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = append(s.logs[id], msg)
}

// CommitHistory stores a fetched transcript. Messages appended while the
// fetch was in flight stay after the transcript, in their original order.
func (s *Store) CommitHistory(id string, history []domain.Message) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.logs[id]
	log := make([]domain.Message, 0, len(history)+len(pending))
	log = append(log, history...)
	log = append(log, pending...)
	s.logs[id] = log
	s.ready[id] = true

	return cloneMessages(log)
}

func cloneSessions(in []domain.ChatSession) []domain.ChatSession {
	out := make([]domain.ChatSession, len(in))
	copy(out, in)
	return out
}

func cloneMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, len(in))
	copy(out, in)
	return out
}
