package chatsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/apex-chat/internal/auth"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/history"
	"github.com/Rrens/apex-chat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	authSvc *MockAuthService
	backend *MockBackend
	channel *MockChannel
	store   *session.Store
	coord   *Coordinator
}

func newFixture(t *testing.T, user *domain.User) *fixture {
	t.Helper()

	f := &fixture{
		authSvc: new(MockAuthService),
		backend: new(MockBackend),
		channel: new(MockChannel),
	}
	f.authSvc.On("CurrentUser", mock.Anything).Return(user, nil)

	f.store = session.NewStore(f.backend)
	f.coord = New(
		auth.NewGate(f.authSvc),
		f.store,
		history.NewLoader(f.backend, f.store),
		f.channel,
	)
	return f
}

func senders(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Sender) + ":" + m.Text
	}
	return out
}

var ada = &domain.User{ID: "u1", FirstName: "Ada", LastName: "Lovelace"}

func TestCoordinator_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("authenticated loads sessions", func(t *testing.T) {
		f := newFixture(t, ada)
		f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "s1", Title: "One"}}, nil)

		assert.Equal(t, domain.AuthAuthenticated, f.coord.Start(ctx))
		assert.Len(t, f.coord.Sessions(), 1)
		assert.Equal(t, "u1", f.coord.User().ID)
	})

	t.Run("list failure leaves empty list", func(t *testing.T) {
		f := newFixture(t, ada)
		f.backend.On("ListSessions", mock.Anything).Return(nil, errors.New("down"))

		assert.Equal(t, domain.AuthAuthenticated, f.coord.Start(ctx))
		assert.Empty(t, f.coord.Sessions())
	})

	t.Run("denied refuses every operation", func(t *testing.T) {
		f := newFixture(t, nil)

		assert.Equal(t, domain.AuthDenied, f.coord.Start(ctx))

		_, err := f.coord.Activate(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		_, err = f.coord.Submit("hi")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		_, err = f.coord.CreateSession(ctx, "")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Nil(t, f.coord.Sessions())
		assert.Nil(t, f.coord.User())

		f.channel.Deliver("s1", "stray")
		assert.Empty(t, f.store.GetLog("s1"))

		f.backend.AssertNotCalled(t, "ListSessions", mock.Anything)
		f.channel.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}

func TestCoordinator_SubmitThenReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.backend.On("ListMessages", mock.Anything, "s1").Return([]domain.RemoteMessage{}, nil)
	f.channel.On("Send", "hi", "s1").Return(nil)

	f.coord.Start(ctx)
	_, err := f.coord.Activate(ctx, "s1")
	require.NoError(t, err)

	msg, err := f.coord.Submit("hi")
	require.NoError(t, err)
	assert.Equal(t, domain.SenderUser, msg.Sender)
	assert.Equal(t, "s1", msg.SessionID)
	assert.NotEmpty(t, msg.ID)
	assert.True(t, f.coord.AwaitingReply("s1"))

	f.channel.Deliver("s1", "hello")

	assert.Equal(t, []string{"user:hi", "ai:hello"}, senders(f.coord.Messages("s1")))
	assert.Equal(t, domain.SessionIdle, f.coord.State("s1"))
	f.channel.AssertExpectations(t)
}

func TestCoordinator_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "a"}, {ID: "b"}}, nil)
	f.backend.On("ListMessages", mock.Anything, mock.Anything).Return([]domain.RemoteMessage{}, nil)
	f.channel.On("Send", mock.Anything, mock.Anything).Return(nil)

	f.coord.Start(ctx)
	f.coord.Activate(ctx, "a")
	_, err := f.coord.Submit("for a")
	require.NoError(t, err)

	f.coord.Activate(ctx, "b")
	assert.True(t, f.coord.AwaitingReply("a"), "pending state survives switching")
	assert.False(t, f.coord.AwaitingReply("b"))

	f.channel.Deliver("a", "reply for a")

	assert.Equal(t, []string{"user:for a", "ai:reply for a"}, senders(f.coord.Messages("a")))
	assert.Empty(t, f.coord.Messages("b"))
	assert.False(t, f.coord.AwaitingReply("a"))

	active, ok := f.coord.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, "b", active.ID)
}

func TestCoordinator_ReplyForUnopenedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.backend.On("ListMessages", mock.Anything, "c").Return([]domain.RemoteMessage{
		{ID: "h1", Role: "user", Content: "earlier"},
	}, nil)

	f.coord.Start(ctx)
	f.channel.Deliver("c", "late reply")

	// history still loads first on activation and the live reply stays after it
	msgs, err := f.coord.Activate(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:earlier", "ai:late reply"}, senders(msgs))
}

func TestCoordinator_SubmitPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.backend.On("ListMessages", mock.Anything, "s1").Return([]domain.RemoteMessage{}, nil)
	f.coord.Start(ctx)

	_, err := f.coord.Submit("hi")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	f.coord.Activate(ctx, "s1")
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.coord.Submit(text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}

	assert.Empty(t, f.coord.Messages("s1"))
	assert.False(t, f.coord.AwaitingReply("s1"))
	f.channel.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	_, err = f.coord.Activate(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCoordinator_SendFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.backend.On("ListMessages", mock.Anything, "s1").Return([]domain.RemoteMessage{}, nil)
	f.channel.On("Send", "hi", "s1").Return(&domain.ChannelError{Op: "send", Err: errors.New("not connected")})

	f.coord.Start(ctx)
	f.coord.Activate(ctx, "s1")

	_, err := f.coord.Submit("hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:hi"}, senders(f.coord.Messages("s1")))
	assert.True(t, f.coord.AwaitingReply("s1"))
}

func TestCoordinator_ActivateHistoryFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.backend.On("ListMessages", mock.Anything, "s1").Return(nil, errors.New("boom")).Once()

	f.coord.Start(ctx)
	msgs, err := f.coord.Activate(ctx, "s1")

	var fetchErr *domain.FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Empty(t, msgs)

	_, ok := f.coord.ActiveSession()
	assert.True(t, ok, "session stays active after a failed load")

	_, err = f.coord.Activate(ctx, "s1")
	assert.NoError(t, err)
	f.backend.AssertNumberOfCalls(t, "ListMessages", 1)
}

func TestCoordinator_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("creates, activates and refreshes", func(t *testing.T) {
		f := newFixture(t, ada)
		f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil).Once()
		f.backend.On("CreateSession", mock.Anything, "New Chat").Return(&domain.ChatSession{ID: "s1", Title: "New Chat"}, nil)
		f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "s1", Title: "New Chat"}}, nil).Once()

		f.coord.Start(ctx)
		sess, err := f.coord.CreateSession(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "s1", sess.ID)

		active, ok := f.coord.ActiveSession()
		require.True(t, ok)
		assert.Equal(t, "New Chat", active.Title)
		assert.Len(t, f.coord.Sessions(), 1)

		// fresh session needs no history fetch
		msgs, err := f.coord.Activate(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
		f.backend.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
	})

	t.Run("failure surfaces", func(t *testing.T) {
		f := newFixture(t, ada)
		f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
		f.backend.On("CreateSession", mock.Anything, "New Chat").Return(nil, errors.New("quota"))

		f.coord.Start(ctx)
		_, err := f.coord.CreateSession(ctx, "")

		var fetchErr *domain.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "create", fetchErr.Op)
		_, ok := f.coord.ActiveSession()
		assert.False(t, ok)
	})
}

func TestCoordinator_Observer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.backend.On("ListMessages", mock.Anything, "s1").Return([]domain.RemoteMessage{}, nil)
	f.channel.On("Send", mock.Anything, mock.Anything).Return(nil)

	var mu sync.Mutex
	var seen []string
	f.coord.SetObserver(func(sessionID string, msg domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		// reading back inside the observer must not deadlock
		f.coord.Messages(sessionID)
		seen = append(seen, sessionID+"/"+string(msg.Sender))
	})

	f.coord.Start(ctx)
	f.coord.Activate(ctx, "s1")
	f.coord.Submit("hi")
	f.channel.Deliver("s1", "hello")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"s1/user", "s1/ai"}, seen)
}

func TestCoordinator_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.backend.On("CreateSession", mock.Anything, "S1").Return(&domain.ChatSession{ID: "S1", Title: "S1"}, nil)
	f.channel.On("Send", "hello", "S1").Return(nil).Run(func(args mock.Arguments) {
		go f.channel.Deliver("S1", "hi there")
	})

	require.Equal(t, domain.AuthAuthenticated, f.coord.Start(ctx))
	_, err := f.coord.CreateSession(ctx, "S1")
	require.NoError(t, err)
	_, err = f.coord.Submit("hello")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !f.coord.AwaitingReply("S1")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"user:hello", "ai:hi there"}, senders(f.coord.Messages("S1")))
}

func TestCoordinator_ConcurrentReplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{}, nil)
	f.coord.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessionID := "a"
			if i%2 == 1 {
				sessionID = "b"
			}
			f.channel.Deliver(sessionID, "x")
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.coord.Messages("a"), 25)
	assert.Len(t, f.coord.Messages("b"), 25)
}

func TestCoordinator_Logout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ada)
	f.backend.On("ListSessions", mock.Anything).Return([]domain.ChatSession{{ID: "s1"}}, nil)
	f.backend.On("ListMessages", mock.Anything, "s1").Return([]domain.RemoteMessage{}, nil)
	f.channel.On("Send", "hi", "s1").Return(nil)

	require.Equal(t, domain.AuthAuthenticated, f.coord.Start(ctx))
	_, err := f.coord.Activate(ctx, "s1")
	require.NoError(t, err)
	_, err = f.coord.Submit("hi")
	require.NoError(t, err)

	f.coord.Logout()

	assert.Nil(t, f.coord.User())
	_, ok := f.coord.ActiveSession()
	assert.False(t, ok)
	_, err = f.coord.Submit("again")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	f.channel.Deliver("s1", "late reply")
	assert.Len(t, f.store.GetLog("s1"), 1, "replies after logout are dropped")

	// signing in again restores access with a clean reply state
	require.Equal(t, domain.AuthAuthenticated, f.coord.Start(ctx))
	assert.Equal(t, "u1", f.coord.User().ID)
	assert.False(t, f.coord.AwaitingReply("s1"))
	f.channel.AssertNumberOfCalls(t, "Send", 1)
}
