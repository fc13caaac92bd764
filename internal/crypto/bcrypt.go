// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package crypto

import (
	"errors"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// TagBcrypt tags hashes produced by BcryptProvider.
const TagBcrypt = "BCRYPT2A"

// BcryptProvider hashes passwords with bcrypt. Mostly present to verify
// hashes imported from older deployments.
type BcryptProvider struct {
	cost int
}

// NewBcryptProvider creates a BcryptProvider. A cost of zero selects bcrypt.DefaultCost.
func NewBcryptProvider(cost int) *BcryptProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptProvider{cost: cost}
}

// Tag implements Provider.
func (p *BcryptProvider) Tag() string { return TagBcrypt }

// Hash implements Provider.
func (p *BcryptProvider) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", oops.Code("HASH_FAILED").With("tag", TagBcrypt).Wrap(err)
	}
	return string(hash), nil
}

// Verify implements Provider.
func (p *BcryptProvider) Verify(password, payload string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(payload), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, oops.Code("HASH_INVALID").With("tag", TagBcrypt).Wrap(err)
}
