// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package event carries domain events raised by the authentication engine.
package event

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/user"
)

// Type identifies the kind of event.
type Type string

const (
	TypeAuthenticated      Type = "authenticated"
	TypePasswordChanged    Type = "password_changed"
	TypePremiumLoginSwitch Type = "premium_login_switch"
)

// Event is implemented by every domain event.
type Event interface {
	EventID() ulid.ULID
	EventType() Type
	OccurredAt() time.Time
	// Subject is the account the event concerns.
	Subject() *user.User
}

// Meta is embedded in concrete events.
type Meta struct {
	ID        ulid.ULID
	Timestamp time.Time
}

// EventID implements Event.
func (m Meta) EventID() ulid.ULID { return m.ID }

// OccurredAt implements Event.
func (m Meta) OccurredAt() time.Time { return m.Timestamp }

// NewMeta stamps a new event.
func NewMeta() Meta {
	now := time.Now().UTC()
	return Meta{ID: newULID(now), Timestamp: now}
}

// Authenticated is raised when a player becomes authorized, either by
// password or through the premium path. Target is nil for staff-initiated
// flows.
type Authenticated struct {
	Meta
	User   *user.User
	Target platform.Target
}

// EventType implements Event.
func (Authenticated) EventType() Type { return TypeAuthenticated }

// Subject implements Event.
func (e Authenticated) Subject() *user.User { return e.User }

// PasswordChanged is raised after a password change. OldHash may be empty
// when the account had no password.
type PasswordChanged struct {
	Meta
	User    *user.User
	Target  platform.Target
	OldHash string
}

// EventType implements Event.
func (PasswordChanged) EventType() Type { return TypePasswordChanged }

// Subject implements Event.
func (e PasswordChanged) Subject() *user.User { return e.User }

// PremiumLoginSwitch is raised when an account's premium binding changes.
// Enabled reports the new state.
type PremiumLoginSwitch struct {
	Meta
	User    *user.User
	Target  platform.Target
	Enabled bool
}

// EventType implements Event.
func (PremiumLoginSwitch) EventType() Type { return TypePremiumLoginSwitch }

// Subject implements Event.
func (e PremiumLoginSwitch) Subject() *user.User { return e.User }

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newULID(at time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy)
}
