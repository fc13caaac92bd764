// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/samber/oops"
)

// Tags for the salted SHA providers.
const (
	TagSHA256 = "SHA-256"
	TagSHA512 = "SHA-512"
)

const shaSaltLen = 8 // bytes, hex-encoded to 16 characters

// SHAProvider implements the legacy "$SHA$<salt>$<digest>" scheme where
// digest = hex(H(hex(H(password)) + salt)). It exists so that hashes
// imported from other login plugins keep verifying until they are upgraded.
type SHAProvider struct {
	tag     string
	newHash func() hash.Hash
}

// NewSHA256Provider creates the SHA-256 variant.
func NewSHA256Provider() *SHAProvider {
	return &SHAProvider{tag: TagSHA256, newHash: sha256.New}
}

// NewSHA512Provider creates the SHA-512 variant.
func NewSHA512Provider() *SHAProvider {
	return &SHAProvider{tag: TagSHA512, newHash: sha512.New}
}

// Tag implements Provider.
func (p *SHAProvider) Tag() string { return p.tag }

// Hash implements Provider.
func (p *SHAProvider) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, shaSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("HASH_SALT_FAILED").Wrap(err)
	}
	saltHex := hex.EncodeToString(salt)
	return "$SHA$" + saltHex + "$" + p.digest(password, saltHex), nil
}

// Verify implements Provider.
func (p *SHAProvider) Verify(password, payload string) (bool, error) {
	parts := strings.Split(payload, "$")
	if len(parts) != 4 || parts[1] != "SHA" {
		return false, oops.Code("HASH_INVALID").With("tag", p.tag).Errorf("invalid SHA payload")
	}
	computed := p.digest(password, parts[2])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(parts[3])) == 1, nil
}

func (p *SHAProvider) digest(password, salt string) string {
	return p.sum(p.sum(password) + salt)
}

func (p *SHAProvider) sum(s string) string {
	h := p.newHash()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
