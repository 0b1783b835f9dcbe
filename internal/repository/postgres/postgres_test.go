package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMigrations = "file://../../../migrations"

func newTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set - run as integration test")
	}

	require.NoError(t, RunMigrations(dsn, testMigrations))

	db, err := Open(context.Background(), dsn, 4, 0)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func createAccount(t *testing.T, repo *AccountRepository) *domain.Account {
	t.Helper()
	now := time.Now()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@Example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(context.Background(), account))
	return account
}

func TestMigrationVersion(t *testing.T) {
	newTestDB(t)

	version, dirty, err := MigrationVersion(os.Getenv("TEST_DATABASE_URL"), testMigrations)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, uint(1))
	assert.False(t, dirty)
}

func TestAccountRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db.Pool)
	ctx := context.Background()

	account := createAccount(t, repo)

	got, err := repo.GetByEmail(ctx, strings.ToLower(account.Email))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, account.ID, got.ID)

	exists, err := repo.EmailExists(ctx, strings.ToUpper(account.Email))
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChatAndMessageRepositories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	account := createAccount(t, NewAccountRepository(db.Pool))
	chats := NewChatRepository(db.Pool)
	messages := NewMessageRepository(db.Pool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	older := &domain.Chat{ID: uuid.New(), UserID: account.ID, Title: "Older", CreatedAt: now, UpdatedAt: now}
	newer := &domain.Chat{ID: uuid.New(), UserID: account.ID, Title: "Newer", CreatedAt: now, UpdatedAt: now.Add(time.Second)}
	require.NoError(t, chats.Create(ctx, older))
	require.NoError(t, chats.Create(ctx, newer))

	list, err := chats.ListByUser(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Newer", list[0].Title)

	require.NoError(t, chats.Touch(ctx, older.ID, now.Add(time.Minute)))
	list, err = chats.ListByUser(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Older", list[0].Title)

	for i, content := range []string{"one", "two", "three"} {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleModel
		}
		require.NoError(t, messages.Create(ctx, &domain.ChatMessage{
			ID:        uuid.New(),
			ChatID:    older.ID,
			UserID:    account.ID,
			Role:      role,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}

	all, err := messages.ListByChat(ctx, older.ID, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Content)
	assert.Equal(t, domain.RoleModel, all[1].Role)

	latest, err := messages.ListByChat(ctx, older.ID, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, []string{"two", "three"}, []string{latest[0].Content, latest[1].Content})

	missing, err := chats.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
