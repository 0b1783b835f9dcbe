// Package memory provides in-process repositories for the reference backend.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
)

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
	byEmail  map[string]uuid.UUID
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[uuid.UUID]*domain.Account),
		byEmail:  make(map[string]uuid.UUID),
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(account.Email)
	if _, exists := r.byEmail[key]; exists {
		return errors.New("account already exists")
	}

	a := *account
	r.accounts[a.ID] = &a
	r.byEmail[key] = a.ID
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	id, ok := r.byEmail[strings.ToLower(email)]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[strings.ToLower(email)]
	return ok, nil
}
