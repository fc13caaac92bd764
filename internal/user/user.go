// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package user defines the durable player account record and its storage contract.
package user

import (
	"context"
	"crypto/md5" //nolint:gosec // offline identities are name-derived, not secret
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// Name constraints shared by every proxy platform.
const (
	MinNameLength = 3
	MaxNameLength = 16
)

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// User is a player account.
//
// A playable account has a password hash or a premium identity. Neither
// being set is the "awaiting registration" state of a freshly joined player.
type User struct {
	UUID           uuid.UUID
	PremiumUUID    *uuid.UUID
	HashedPassword *string
	LastNickname   string
	LastSeen       time.Time
	JoinDate       time.Time
}

// New creates a user that joined now.
func New(id uuid.UUID, premiumID *uuid.UUID, hashedPassword *string, name string) *User {
	now := time.Now().UTC()
	return &User{
		UUID:           id,
		PremiumUUID:    premiumID,
		HashedPassword: hashedPassword,
		LastNickname:   name,
		LastSeen:       now,
		JoinDate:       now,
	}
}

// IsRegistered reports whether the user has a password.
func (u *User) IsRegistered() bool {
	return u.HashedPassword != nil
}

// IsPremium reports whether the user is bound to a premium identity.
func (u *User) IsPremium() bool {
	return u.PremiumUUID != nil
}

// SetPassword stores a hash; the empty string clears it.
func (u *User) SetPassword(hash string) {
	if hash == "" {
		u.HashedPassword = nil
		return
	}
	u.HashedPassword = &hash
}

// Password returns the stored hash or "".
func (u *User) Password() string {
	if u.HashedPassword == nil {
		return ""
	}
	return *u.HashedPassword
}

// Touch records activity.
func (u *User) Touch() {
	u.LastSeen = time.Now().UTC()
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	c := *u
	if u.PremiumUUID != nil {
		id := *u.PremiumUUID
		c.PremiumUUID = &id
	}
	if u.HashedPassword != nil {
		h := *u.HashedPassword
		c.HashedPassword = &h
	}
	return &c
}

// ValidateName checks a display name against the platform rules.
func ValidateName(name string) error {
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return oops.Code("USER_INVALID_NAME").
			With("name", name).
			With("min", MinNameLength).
			With("max", MaxNameLength).
			Errorf("name must be between %d and %d characters", MinNameLength, MaxNameLength)
	}
	if !nameRegex.MatchString(name) {
		return oops.Code("USER_INVALID_NAME").
			With("name", name).
			Errorf("name may only contain letters, numbers, and underscores")
	}
	return nil
}

// OfflineUUID derives the identity the platform assigns to a name in
// offline mode: a version 3 UUID over "OfflinePlayer:<name>" with no namespace.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name)) //nolint:gosec // see import
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.UUID(sum)
}

// Store is the durable user storage.
type Store interface {
	// GetByName retrieves a user by last known name (case-insensitive).
	// Returns ErrNotFound if absent.
	GetByName(ctx context.Context, name string) (*User, error)

	// GetByUUID retrieves a user by stable identity. Returns ErrNotFound if absent.
	GetByUUID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByPremiumUUID retrieves a user by premium identity. Returns ErrNotFound if absent.
	GetByPremiumUUID(ctx context.Context, id uuid.UUID) (*User, error)

	// Save inserts or updates a user.
	Save(ctx context.Context, u *User) error

	// Delete removes a user.
	Delete(ctx context.Context, u *User) error
}
