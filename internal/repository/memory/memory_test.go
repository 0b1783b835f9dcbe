package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()

	acc := &domain.Account{ID: uuid.New(), Email: "Ada@Example.com", FirstName: "Ada"}
	require.NoError(t, repo.Create(ctx, acc))
	assert.Error(t, repo.Create(ctx, &domain.Account{ID: uuid.New(), Email: "ada@example.com"}))

	exists, err := repo.EmailExists(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acc.ID, got.ID)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChatRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	user := uuid.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := &domain.Chat{ID: uuid.New(), UserID: user, Title: "older", CreatedAt: base, UpdatedAt: base}
	newer := &domain.Chat{ID: uuid.New(), UserID: user, Title: "newer", CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}
	other := &domain.Chat{ID: uuid.New(), UserID: uuid.New(), Title: "other", CreatedAt: base, UpdatedAt: base}
	for _, c := range []*domain.Chat{older, newer, other} {
		require.NoError(t, repo.Create(ctx, c))
	}

	chats, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "newer", chats[0].Title)

	require.NoError(t, repo.Touch(ctx, older.ID, base.Add(time.Hour)))
	chats, _ = repo.ListByUser(ctx, user)
	assert.Equal(t, "older", chats[0].Title)

	assert.Error(t, repo.Touch(ctx, uuid.New(), base))
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository()
	chat := uuid.New()

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Create(ctx, &domain.ChatMessage{ID: uuid.New(), ChatID: chat, Role: domain.RoleUser, Content: content}))
	}

	all, err := repo.ListByChat(ctx, chat, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	latest, err := repo.ListByChat(ctx, chat, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "two", latest[0].Content)
	assert.Equal(t, "three", latest[1].Content)

	empty, err := repo.ListByChat(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTokenDenylist(t *testing.T) {
	ctx := context.Background()
	d := NewTokenDenylist()

	require.NoError(t, d.Revoke(ctx, "live", time.Now().Add(time.Minute)))
	require.NoError(t, d.Revoke(ctx, "expired", time.Now().Add(-time.Minute)))

	revoked, _ := d.IsRevoked(ctx, "live")
	assert.True(t, revoked)
	revoked, _ = d.IsRevoked(ctx, "expired")
	assert.False(t, revoked)
	revoked, _ = d.IsRevoked(ctx, "unknown")
	assert.False(t, revoked)
}
