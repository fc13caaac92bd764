// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package crypto

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// CodeUnsupportedFormat is the error code for hashes no registered provider can handle.
const CodeUnsupportedFormat = "HASH_UNSUPPORTED_FORMAT"

// tagSeparator splits the provider tag from the payload in a stored hash.
const tagSeparator = ":"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// Provider hashes and verifies passwords with one algorithm.
// Providers only see the payload portion of a stored hash.
type Provider interface {
	// Tag identifies the provider inside stored hashes. Must not contain ":".
	Tag() string

	// Hash produces a payload for the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the payload.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed payload.
	Verify(password, payload string) (bool, error)
}

// Registry maps tags to providers and remembers which one is the default.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	defaultTag string
}

// NewRegistry creates a registry holding the given providers.
// defaultTag must name one of them.
func NewRegistry(defaultTag string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	if err := r.SetDefault(defaultTag); err != nil {
		return nil, err
	}
	return r, nil
}

// NewDefaultRegistry returns a registry with every built-in provider and
// argon2id as the default.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(TagArgon2id,
		NewArgon2idProvider(),
		NewBcryptProvider(0),
		NewSHA256Provider(),
		NewSHA512Provider(),
	)
	if err != nil {
		// Built-in tags are constants; this only fires on a programming error.
		panic(err)
	}
	return r
}

// Register adds a provider, replacing any provider with the same tag.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return oops.Code("HASH_PROVIDER_INVALID").Errorf("provider cannot be nil")
	}
	tag := p.Tag()
	if tag == "" || strings.Contains(tag, tagSeparator) {
		return oops.Code("HASH_PROVIDER_INVALID").
			With("tag", tag).
			Errorf("invalid provider tag %q", tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[tag] = p
	return nil
}

// SetDefault selects the provider used for new hashes.
func (r *Registry) SetDefault(tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[tag]; !ok {
		return unsupported(tag)
	}
	r.defaultTag = tag
	return nil
}

// Default returns the tag of the default provider.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultTag
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.providers))
	for tag := range r.providers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Provider returns the provider registered under tag.
func (r *Registry) Provider(tag string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[tag]
	if !ok {
		return nil, unsupported(tag)
	}
	return p, nil
}

// CreateHash hashes plaintext with the provider named by tag and returns the tagged hash.
func (r *Registry) CreateHash(tag, plaintext string) (string, error) {
	p, err := r.Provider(tag)
	if err != nil {
		return "", err
	}
	payload, err := p.Hash(plaintext)
	if err != nil {
		return "", err
	}
	return tag + tagSeparator + payload, nil
}

// CreateDefaultHash hashes plaintext with the default provider.
func (r *Registry) CreateDefaultHash(plaintext string) (string, error) {
	return r.CreateHash(r.Default(), plaintext)
}

// Identify returns the tag of a stored hash.
// Fails with HASH_UNSUPPORTED_FORMAT if the hash is untagged or the tag is unknown.
func (r *Registry) Identify(tagged string) (string, error) {
	tag, _, ok := strings.Cut(tagged, tagSeparator)
	if !ok || tag == "" {
		return "", oops.Code(CodeUnsupportedFormat).Errorf("hash carries no provider tag")
	}
	if _, err := r.Provider(tag); err != nil {
		return "", err
	}
	return tag, nil
}

// Matches reports whether plaintext matches a tagged hash under the provider named by tag.
// A hash produced by another provider never matches.
func (r *Registry) Matches(tag, plaintext, tagged string) (bool, error) {
	p, err := r.Provider(tag)
	if err != nil {
		return false, err
	}
	storedTag, payload, ok := strings.Cut(tagged, tagSeparator)
	if !ok {
		return false, oops.Code(CodeUnsupportedFormat).Errorf("hash carries no provider tag")
	}
	if storedTag != tag {
		return false, nil
	}
	return p.Verify(plaintext, payload)
}

// Verify identifies the stored hash and checks plaintext against it.
func (r *Registry) Verify(plaintext, tagged string) (bool, error) {
	tag, err := r.Identify(tagged)
	if err != nil {
		return false, err
	}
	return r.Matches(tag, plaintext, tagged)
}

// NeedsUpgrade reports whether a stored hash was produced by a provider other than the default.
func (r *Registry) NeedsUpgrade(tagged string) bool {
	tag, err := r.Identify(tagged)
	if err != nil {
		return false
	}
	return tag != r.Default()
}

func unsupported(tag string) error {
	return oops.Code(CodeUnsupportedFormat).
		With("tag", tag).
		Errorf("unsupported hash format: %s", tag)
}
