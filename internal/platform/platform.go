// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package platform declares what gatekeeper needs from the proxy it runs in.
//
// Adapters for a concrete proxy implement these interfaces; nothing in this
// module depends on a particular proxy.
package platform

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Target is the messaging handle for one connection.
type Target interface {
	// SendMessage delivers a chat line to the connection.
	SendMessage(msg string)
	// ShowTitle displays a title for the given duration.
	ShowTitle(title string, stay time.Duration)
	// ClearTitle removes any title currently shown.
	ClearTitle()
}

// Proxy is the host proxy as seen by gatekeeper.
type Proxy interface {
	// Target returns the messaging handle for a connected identity, or nil.
	Target(id uuid.UUID) Target
	// Servers returns the names of every backend the proxy knows about.
	Servers() []string
	// PlayerCount reports the current load of a backend.
	// ok is false when the proxy has no backend with that name.
	PlayerCount(server string) (count int, ok bool)
	// Connect moves a connection to a backend.
	Connect(ctx context.Context, id uuid.UUID, server string) error
	// Kick terminates a connection with a reason.
	Kick(ctx context.Context, id uuid.UUID, reason string)
	// IsOnline reports whether an identity currently has a connection.
	IsOnline(id uuid.UUID) bool
}

// Scheduler runs one-shot delayed tasks.
type Scheduler interface {
	// Schedule runs task once after delay.
	Schedule(delay time.Duration, task func())
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

// Schedule implements Scheduler.
func (TimerScheduler) Schedule(delay time.Duration, task func()) {
	time.AfterFunc(delay, task)
}
