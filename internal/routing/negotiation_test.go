// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package routing_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/internal/routing"
	"github.com/holomush/gatekeeper/internal/user"
)

func TestDecide(t *testing.T) {
	premiumID := uuid.New()
	storedPremium := user.New(uuid.New(), &premiumID, nil, "Notch")
	storedCracked := user.New(uuid.New(), nil, nil, "Alice")
	identity := &premium.Identity{UUID: uuid.New(), Name: "Bob"}

	tests := []struct {
		name         string
		lookup       routing.Lookup
		autoRegister bool
		want         routing.Verdict
		reason       string
	}{
		{
			name:   "illegal name",
			lookup: routing.Lookup{Name: "no spaces"},
			want:   routing.Deny,
			reason: routing.ReasonIllegalName,
		},
		{
			name:   "case mismatch with stored name",
			lookup: routing.Lookup{Name: "alice", Stored: storedCracked},
			want:   routing.Deny,
			reason: routing.ReasonInvalidCase,
		},
		{
			name:   "stored premium account",
			lookup: routing.Lookup{Name: "Notch", Stored: storedPremium},
			want:   routing.Allow,
		},
		{
			name:   "stored cracked account",
			lookup: routing.Lookup{Name: "Alice", Stored: storedCracked},
			want:   routing.AllowUntrusted,
		},
		{
			name:   "stored account ignores resolver failure",
			lookup: routing.Lookup{Name: "Alice", Stored: storedCracked, ResolveErr: errors.New("x")},
			want:   routing.AllowUntrusted,
		},
		{
			name:         "unknown premium name with auto register",
			lookup:       routing.Lookup{Name: "Bob", Identity: identity},
			autoRegister: true,
			want:         routing.Allow,
		},
		{
			name:   "unknown premium name without auto register",
			lookup: routing.Lookup{Name: "Bob", Identity: identity},
			want:   routing.AllowUntrusted,
		},
		{
			name:         "unknown name without identity",
			lookup:       routing.Lookup{Name: "Carol"},
			autoRegister: true,
			want:         routing.AllowUntrusted,
		},
		{
			name:   "resolver throttled",
			lookup: routing.Lookup{Name: "Dave", ResolveErr: oops.Code(premium.CodeThrottled).Errorf("slow down")},
			want:   routing.Deny,
			reason: routing.ReasonPremiumThrottled,
		},
		{
			name:   "resolver server exception",
			lookup: routing.Lookup{Name: "Dave", ResolveErr: oops.Code(premium.CodeServerException).Errorf("down")},
			want:   routing.Deny,
			reason: routing.ReasonPremiumUndefined,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := routing.Decide(tt.lookup, tt.autoRegister)
			assert.Equal(t, tt.want, got.Verdict)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestDecide_CaseMismatchNamesStoredSpelling(t *testing.T) {
	stored := user.New(uuid.New(), nil, nil, "Alice")
	got := routing.Decide(routing.Lookup{Name: "ALICE", Stored: stored}, false)
	assert.Equal(t, "Alice", got.Placeholders["username"])
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "allow", routing.Allow.String())
	assert.Equal(t, "allow_untrusted", routing.AllowUntrusted.String())
	assert.Equal(t, "deny", routing.Deny.String())
}
