// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package routing

import (
	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/internal/user"
)

// Verdict is the pre-login outcome for a connection attempt.
type Verdict int

const (
	// Deny refuses the connection with a reason.
	Deny Verdict = iota
	// Allow proceeds in trusted mode; the platform verifies the premium identity.
	Allow
	// AllowUntrusted proceeds in offline mode; the player must password-authenticate.
	AllowUntrusted
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case AllowUntrusted:
		return "allow_untrusted"
	default:
		return "deny"
	}
}

// Message keys used as deny reasons.
const (
	ReasonIllegalName      = "kick-illegal-username"
	ReasonInvalidCase      = "kick-invalid-case-username"
	ReasonPremiumThrottled = "kick-premium-error-throttled"
	ReasonPremiumUndefined = "kick-premium-error-undefined"
	ReasonNoServer         = "kick-no-server"
	ReasonError            = "kick-error"
)

// Negotiation is the result of Decide.
type Negotiation struct {
	Verdict Verdict
	// Reason is a message key, set only for Deny.
	Reason string
	// Placeholders fill the reason message.
	Placeholders map[string]string
}

// Lookup is what is known about a connecting name when the decision is made.
type Lookup struct {
	// Name is the name the client presented.
	Name string
	// Stored is the account on record for the name, if any.
	Stored *user.User
	// Identity is the resolved trusted identity. Only consulted when Stored is nil.
	Identity *premium.Identity
	// ResolveErr is the resolution failure, if any.
	ResolveErr error
}

// Decide maps a lookup onto a negotiation verdict. autoRegisterPremium
// controls whether an unknown name with a trusted identity is admitted in
// trusted mode.
func Decide(l Lookup, autoRegisterPremium bool) Negotiation {
	if user.ValidateName(l.Name) != nil {
		return deny(ReasonIllegalName, nil)
	}

	if l.Stored != nil {
		if l.Stored.LastNickname != l.Name {
			return deny(ReasonInvalidCase, map[string]string{
				"username": l.Stored.LastNickname,
			})
		}
		if l.Stored.IsPremium() {
			return Negotiation{Verdict: Allow}
		}
		return Negotiation{Verdict: AllowUntrusted}
	}

	if l.ResolveErr != nil {
		if issue, _ := premium.IssueOf(l.ResolveErr); issue == premium.IssueThrottled {
			return deny(ReasonPremiumThrottled, nil)
		}
		return deny(ReasonPremiumUndefined, nil)
	}

	if l.Identity != nil && autoRegisterPremium {
		return Negotiation{Verdict: Allow}
	}
	return Negotiation{Verdict: AllowUntrusted}
}

func deny(reason string, placeholders map[string]string) Negotiation {
	return Negotiation{Verdict: Deny, Reason: reason, Placeholders: placeholders}
}
