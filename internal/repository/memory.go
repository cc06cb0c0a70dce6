package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tokengate/tokengate-go/internal/model"
)

// MemoryUserRepository keeps accounts in process memory. It backs development
// setups and tests.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]model.Account
	byEmail    map[string]string
	byPhone    map[string]string
	byUsername map[string]string
}

// NewMemoryUserRepository creates an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       make(map[string]model.Account),
		byEmail:    make(map[string]string),
		byPhone:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (r *MemoryUserRepository) FindUserByIdentifier(_ context.Context, identifier string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var index map[string]string
	switch DetectIdentifierKind(identifier) {
	case KindEmail:
		index = r.byEmail
	case KindPhone:
		index = r.byPhone
	default:
		index = r.byUsername
	}

	id, ok := index[identifier]
	if !ok || identifier == "" {
		return nil, ErrUserNotFound
	}
	acct := r.byID[id]
	return &acct, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &acct, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, acct *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[acct.ID]; ok {
		return ErrDuplicateAccount
	}
	if taken(r.byEmail, acct.Email) || taken(r.byPhone, acct.Phone) || taken(r.byUsername, acct.Username) {
		return ErrDuplicateAccount
	}

	r.byID[acct.ID] = *acct
	addIndex(r.byEmail, acct.Email, acct.ID)
	addIndex(r.byPhone, acct.Phone, acct.ID)
	addIndex(r.byUsername, acct.Username, acct.ID)
	return nil
}

func (r *MemoryUserRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	acct.LastLoginAt = FormatTime(at)
	r.byID[id] = acct
	return nil
}

func taken(index map[string]string, key string) bool {
	if key == "" {
		return false
	}
	_, ok := index[key]
	return ok
}

func addIndex(idx map[string]string, key, id string) {
	if key != "" {
		idx[key] = id
	}
}
