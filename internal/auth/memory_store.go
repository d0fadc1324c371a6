package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of AccountStore,
// intended for development and testing scenarios. Each role has its own id
// sequence, mirroring the separate account tables.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[Role]map[string]*Account
	byID    map[Role]map[int64]*Account
	nextID  map[Role]int64
	now     func() time.Time
}

// NewMemoryStore initialises an empty store.
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		byEmail: make(map[Role]map[string]*Account),
		byID:    make(map[Role]map[int64]*Account),
		nextID:  make(map[Role]int64),
		now:     time.Now,
	}
	for _, role := range []Role{RoleUser, RoleArtist, RoleAdmin} {
		store.byEmail[role] = make(map[string]*Account)
		store.byID[role] = make(map[int64]*Account)
		store.nextID[role] = 1
	}
	return store
}

// CreateAccount implements AccountStore.
func (s *MemoryStore) CreateAccount(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	emails, ok := s.byEmail[account.Role]
	if !ok {
		return ErrAccountNotFound
	}
	key := strings.ToLower(strings.TrimSpace(account.Email))
	if _, exists := emails[key]; exists {
		return ErrEmailTaken
	}
	account.ID = s.nextID[account.Role]
	s.nextID[account.Role]++
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now().UTC()
	}
	stored := *account
	emails[key] = &stored
	s.byID[account.Role][stored.ID] = &stored
	return nil
}

// FindAccountByEmail implements AccountStore.
func (s *MemoryStore) FindAccountByEmail(_ context.Context, role Role, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byEmail[role][strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

// FindAccountByID implements AccountStore.
func (s *MemoryStore) FindAccountByID(_ context.Context, role Role, id int64) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byID[role][id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

// UpdatePasswordHash implements AccountStore.
func (s *MemoryStore) UpdatePasswordHash(_ context.Context, role Role, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[role][id]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = hash
	return nil
}

// ListAccounts returns every account of a role ordered by id.
func (s *MemoryStore) ListAccounts(_ context.Context, role Role) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.byID[role]))
	for _, account := range s.byID[role] {
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
