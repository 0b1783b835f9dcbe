// Package history lazily fills session logs from the backend transcript.
package history

import (
	"context"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// LogStore is the part of the session store the loader writes to
type LogStore interface {
	HasLog(id string) bool
	GetLog(id string) []domain.Message
	CommitHistory(id string, history []domain.Message) []domain.Message
}

// Loader fetches each session's transcript at most once
type Loader struct {
	service domain.HistoryService
	store   LogStore
	group   singleflight.Group
	now     func() time.Time
}

// NewLoader creates a new history loader
func NewLoader(service domain.HistoryService, store LogStore) *Loader {
	return &Loader{
		service: service,
		store:   store,
		now:     time.Now,
	}
}

// LoadIfAbsent returns the session's log, fetching it first when the store
// has no entry for the id. A failed fetch commits an empty log and is not retried.
// A caller whose ctx ends stops waiting, but the shared fetch runs to completion
// and still commits.
func (l *Loader) LoadIfAbsent(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if l.store.HasLog(sessionID) {
		return l.store.GetLog(sessionID), nil
	}

	type result struct {
		log []domain.Message
		err error
	}

	// the fetch is shared, so it must not end with the first caller's ctx
	fetchCtx := context.WithoutCancel(ctx)

	ch := l.group.DoChan(sessionID, func() (interface{}, error) {
		// another caller may have committed between the check above and here
		if l.store.HasLog(sessionID) {
			return result{log: l.store.GetLog(sessionID)}, nil
		}

		records, err := l.service.ListMessages(fetchCtx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load history")
			return result{
				log: l.store.CommitHistory(sessionID, nil),
				err: &domain.FetchError{Op: "history", SessionID: sessionID, Err: err},
			}, nil
		}

		now := l.now()
		messages := make([]domain.Message, 0, len(records))
		for _, rec := range records {
			messages = append(messages, Normalize(rec, sessionID, now))
		}

		log.Debug().Str("session_id", sessionID).Int("count", len(messages)).Msg("History loaded")
		return result{log: l.store.CommitHistory(sessionID, messages)}, nil
	})

	select {
	case r := <-ch:
		res := r.Val.(result)
		return res.log, res.err
	case <-ctx.Done():
		return l.store.GetLog(sessionID), &domain.FetchError{Op: "history", SessionID: sessionID, Err: ctx.Err()}
	}
}

// Normalize maps a backend history record onto a Message.
// Values are copied verbatim; missing fields fall back to sessionID and now.
func Normalize(rec domain.RemoteMessage, sessionID string, now time.Time) domain.Message {
	id := domain.FirstNonEmpty(rec.ID, rec.AltID)
	if id == "" {
		id = uuid.NewString()
	}

	chat := domain.FirstNonEmpty(rec.Chat, rec.ChatID)
	if chat == "" {
		chat = sessionID
	}

	ts := domain.FirstNonEmpty(rec.CreatedAt, rec.Timestamp, rec.UpdatedAt)
	if ts == "" {
		ts = now.UTC().Format(time.RFC3339)
	}

	return domain.Message{
		ID:        id,
		Sender:    senderOf(domain.FirstNonEmpty(rec.Role, rec.Sender)),
		Text:      domain.FirstNonEmpty(rec.Content, rec.Text),
		SessionID: chat,
		Timestamp: ts,
	}
}

// senderOf maps the role marker exactly; "ai" is the legacy sender value
func senderOf(role string) domain.Sender {
	switch role {
	case string(domain.RoleModel), string(domain.SenderAI):
		return domain.SenderAI
	default:
		return domain.SenderUser
	}
}
