// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package user

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MemoryStore is an in-process Store. It backs tests and single-node
// deployments without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]*User)}
}

// GetByName implements Store.
func (s *MemoryStore) GetByName(_ context.Context, name string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.LastNickname, name) {
			return u.Clone(), nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("name", name).Wrap(ErrNotFound)
}

// GetByUUID implements Store.
func (s *MemoryStore) GetByUUID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("uuid", id.String()).Wrap(ErrNotFound)
	}
	return u.Clone(), nil
}

// GetByPremiumUUID implements Store.
func (s *MemoryStore) GetByPremiumUUID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.PremiumUUID != nil && *u.PremiumUUID == id {
			return u.Clone(), nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("premium_uuid", id.String()).Wrap(ErrNotFound)
}

// Save implements Store. Names are unique case-insensitively.
func (s *MemoryStore) Save(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if id != u.UUID && strings.EqualFold(existing.LastNickname, u.LastNickname) {
			return oops.Code("USER_NAME_TAKEN").
				With("name", u.LastNickname).
				Errorf("name %s is already in use", u.LastNickname)
		}
	}
	s.users[u.UUID] = u.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, u.UUID)
	return nil
}

// Len returns the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

var _ Store = (*MemoryStore)(nil)
