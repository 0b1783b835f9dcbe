// Package chatsync reconciles the auth state, session logs and the live
// channel into one per-session ordered message view.
package chatsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/socketio"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrNoActiveSession  = errors.New("no active session")
	ErrInvalidSession   = errors.New("invalid session id")
)

// Gate resolves and reports the identity
type Gate interface {
	Resolve(ctx context.Context) domain.AuthStatus
	Authenticated() bool
	User() *domain.User
	Reset()
}

// Store holds sessions and their logs
type Store interface {
	Refresh(ctx context.Context) ([]domain.ChatSession, error)
	ListSessions() []domain.ChatSession
	Session(id string) (domain.ChatSession, bool)
	CreateSession(ctx context.Context, title string) (domain.ChatSession, error)
	GetLog(id string) []domain.Message
	AppendMessage(id string, msg domain.Message)
}

// Loader fills a session log from history on first access
type Loader interface {
	LoadIfAbsent(ctx context.Context, sessionID string) ([]domain.Message, error)
}

// Channel is the live event channel
type Channel interface {
	Send(text, sessionID string) error
	SetReplyHandler(h socketio.ReplyHandler)
}

// Observer is notified after every log append, outside any lock
type Observer func(sessionID string, msg domain.Message)

// Coordinator drives the chat session lifecycle
type Coordinator struct {
	gate    Gate
	store   Store
	loader  Loader
	channel Channel
	now     func() time.Time

	mu       sync.RWMutex
	active   string
	states   map[string]domain.SessionState
	observer Observer
}

// New creates a coordinator and registers it as the channel's reply handler
func New(gate Gate, store Store, loader Loader, channel Channel) *Coordinator {
	c := &Coordinator{
		gate:    gate,
		store:   store,
		loader:  loader,
		channel: channel,
		now:     time.Now,
		states:  make(map[string]domain.SessionState),
	}
	channel.SetReplyHandler(c.OnReply)
	return c
}

// SetObserver installs the append observer
func (c *Coordinator) SetObserver(o Observer) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Start resolves the identity and, once authenticated, loads the session list.
// A failed list fetch leaves the list empty.
func (c *Coordinator) Start(ctx context.Context) domain.AuthStatus {
	status := c.gate.Resolve(ctx)
	if status != domain.AuthAuthenticated {
		return status
	}

	if _, err := c.store.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load sessions")
	}
	return status
}

// Activate makes the session active and loads its history if needed.
// The returned error is informational; the log is empty on failure.
func (c *Coordinator) Activate(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if !c.gate.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	c.mu.Lock()
	c.active = sessionID
	c.mu.Unlock()

	msgs, err := c.loader.LoadIfAbsent(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("History unavailable")
	}
	return msgs, err
}

// Submit appends the user's turn to the active session and forwards it on the
// channel. A failed send is logged and the appended turn is kept.
func (c *Coordinator) Submit(text string) (domain.Message, error) {
	if !c.gate.Authenticated() {
		return domain.Message{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	sessionID := c.active
	if sessionID == "" {
		c.mu.Unlock()
		return domain.Message{}, ErrNoActiveSession
	}

	msg := c.newMessage(domain.SenderUser, text, sessionID)
	c.store.AppendMessage(sessionID, msg)
	c.states[sessionID] = domain.SessionAwaitingReply
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer(sessionID, msg)
	}

	if err := c.channel.Send(text, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to send message")
	}

	return msg, nil
}

// OnReply appends an AI reply to its own session's log, active or not,
// and returns that session to idle
func (c *Coordinator) OnReply(sessionID, text string) {
	if !c.gate.Authenticated() {
		log.Warn().Str("session_id", sessionID).Msg("Dropping reply received while not authenticated")
		return
	}
	if sessionID == "" {
		log.Warn().Msg("Dropping reply without session id")
		return
	}

	c.mu.Lock()
	msg := c.newMessage(domain.SenderAI, text, sessionID)
	c.store.AppendMessage(sessionID, msg)
	c.states[sessionID] = domain.SessionIdle
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer(sessionID, msg)
	}
}

// CreateSession creates a session, makes it active and refreshes the list
func (c *Coordinator) CreateSession(ctx context.Context, title string) (domain.ChatSession, error) {
	if !c.gate.Authenticated() {
		return domain.ChatSession{}, ErrNotAuthenticated
	}

	sess, err := c.store.CreateSession(ctx, title)
	if err != nil {
		return domain.ChatSession{}, err
	}

	c.mu.Lock()
	c.active = sess.ID
	c.states[sess.ID] = domain.SessionIdle
	c.mu.Unlock()

	if _, err := c.store.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to refresh sessions after create")
	}

	log.Info().Str("session_id", sess.ID).Msg("Session created")
	return sess, nil
}

// Logout drops the user and clears the active pointer and reply states.
// Every operation is refused until Start resolves a user again.
func (c *Coordinator) Logout() {
	c.gate.Reset()

	c.mu.Lock()
	c.active = ""
	c.states = make(map[string]domain.SessionState)
	c.mu.Unlock()

	log.Info().Msg("Signed out")
}

// Sessions returns the known sessions
func (c *Coordinator) Sessions() []domain.ChatSession {
	if !c.gate.Authenticated() {
		return nil
	}
	return c.store.ListSessions()
}

// ActiveSession returns the active session, if any
func (c *Coordinator) ActiveSession() (domain.ChatSession, bool) {
	if !c.gate.Authenticated() {
		return domain.ChatSession{}, false
	}

	c.mu.RLock()
	id := c.active
	c.mu.RUnlock()

	if id == "" {
		return domain.ChatSession{}, false
	}
	if sess, ok := c.store.Session(id); ok {
		return sess, true
	}
	return domain.ChatSession{ID: id}, true
}

// Messages returns a copy of the session's log
func (c *Coordinator) Messages(sessionID string) []domain.Message {
	if !c.gate.Authenticated() {
		return nil
	}
	return c.store.GetLog(sessionID)
}

// State returns the session's reply state
func (c *Coordinator) State(sessionID string) domain.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.states[sessionID]; ok {
		return s
	}
	return domain.SessionIdle
}

// AwaitingReply reports whether the session has a turn without a reply
func (c *Coordinator) AwaitingReply(sessionID string) bool {
	return c.State(sessionID) == domain.SessionAwaitingReply
}

// User returns the authenticated user, or nil
func (c *Coordinator) User() *domain.User {
	return c.gate.User()
}

func (c *Coordinator) newMessage(sender domain.Sender, text, sessionID string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		SessionID: sessionID,
		Timestamp: c.now().UTC().Format(time.RFC3339Nano),
	}
}
