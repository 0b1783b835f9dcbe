package session

import (
	"context"
	"errors"
	"testing"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func msg(id, text string) domain.Message {
	return domain.Message{ID: id, Sender: domain.SenderUser, Text: text, SessionID: "s1"}
}

func TestStore_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces list in backend order", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("ListSessions", mock.Anything).Return([]domain.ChatSession{
			{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "a", Title: "dup"},
		}, nil)

		store := NewStore(svc)
		sessions, err := store.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.ChatSession{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}, sessions)
		assert.Equal(t, sessions, store.ListSessions())
		svc.AssertExpectations(t)
	})

	t.Run("keeps locally created sessions", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("CreateSession", mock.Anything, "New Chat").Return(&domain.ChatSession{ID: "new", Title: "New Chat"}, nil)
		svc.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "a", Title: "A"}}, nil)

		store := NewStore(svc)
		_, err := store.CreateSession(ctx, "")
		require.NoError(t, err)

		sessions, err := store.Refresh(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "a", sessions[0].ID)
		assert.Equal(t, "new", sessions[1].ID)
	})

	t.Run("drops sessions the backend no longer lists", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "a"}, {ID: "b"}}, nil).Once()
		svc.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "a"}}, nil).Once()

		store := NewStore(svc)
		_, err := store.Refresh(ctx)
		require.NoError(t, err)

		sessions, err := store.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.ChatSession{{ID: "a"}}, sessions)
		assert.Equal(t, []domain.ChatSession{{ID: "a"}}, store.ListSessions())
		_, ok := store.Session("b")
		assert.False(t, ok)
	})

	t.Run("created session dropped once listed then removed", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("CreateSession", mock.Anything, "New Chat").Return(&domain.ChatSession{ID: "new", Title: "New Chat"}, nil)
		svc.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "new", Title: "New Chat"}}, nil).Once()
		svc.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil).Once()

		store := NewStore(svc)
		_, err := store.CreateSession(ctx, "")
		require.NoError(t, err)

		sessions, err := store.Refresh(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)

		sessions, err = store.Refresh(ctx)
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("failure keeps previous list", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "a"}}, nil).Once()
		svc.On("ListSessions", mock.Anything).Return(nil, errors.New("boom")).Once()

		store := NewStore(svc)
		_, err := store.Refresh(ctx)
		require.NoError(t, err)

		_, err = store.Refresh(ctx)
		var fetchErr *domain.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "list", fetchErr.Op)
		assert.Len(t, store.ListSessions(), 1)
	})
}

func TestStore_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("initializes empty log", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("CreateSession", mock.Anything, "Trip").Return(&domain.ChatSession{ID: "s1", Title: "Trip"}, nil)

		store := NewStore(svc)
		sess, err := store.CreateSession(ctx, "Trip")
		require.NoError(t, err)
		assert.Equal(t, "s1", sess.ID)
		assert.True(t, store.HasLog("s1"))
		assert.Empty(t, store.GetLog("s1"))

		got, ok := store.Session("s1")
		assert.True(t, ok)
		assert.Equal(t, "Trip", got.Title)
	})

	t.Run("falls back to requested title", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("CreateSession", mock.Anything, "New Chat").Return(&domain.ChatSession{ID: "s2"}, nil)

		store := NewStore(svc)
		sess, err := store.CreateSession(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "New Chat", sess.Title)
	})

	t.Run("backend failure", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("CreateSession", mock.Anything, "New Chat").Return(nil, errors.New("boom"))

		store := NewStore(svc)
		_, err := store.CreateSession(ctx, "")
		var fetchErr *domain.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "create", fetchErr.Op)
		assert.Empty(t, store.ListSessions())
	})
}

func TestStore_Logs(t *testing.T) {
	store := NewStore(new(MockSessionService))

	assert.False(t, store.HasLog("s1"))
	assert.Empty(t, store.GetLog("s1"))

	store.AppendMessage("s1", msg("1", "hi"))
	store.AppendMessage("s1", msg("1", "hi"))
	assert.False(t, store.HasLog("s1"), "appends alone do not initialize a log")
	assert.Len(t, store.GetLog("s1"), 2, "appends are not deduplicated")

	// returned slices are copies
	log := store.GetLog("s1")
	log[0].Text = "changed"
	assert.Equal(t, "hi", store.GetLog("s1")[0].Text)
}

func TestStore_CommitHistory(t *testing.T) {
	store := NewStore(new(MockSessionService))

	store.AppendMessage("s1", msg("live", "sent while loading"))
	log := store.CommitHistory("s1", []domain.Message{msg("h1", "old"), msg("h2", "older reply")})

	require.Len(t, log, 3)
	assert.True(t, store.HasLog("s1"))
	assert.Equal(t, []string{"h1", "h2", "live"}, []string{log[0].ID, log[1].ID, log[2].ID})

	empty := store.CommitHistory("s2", nil)
	assert.Empty(t, empty)
	assert.True(t, store.HasLog("s2"))
}
