// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package premium

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultAPIURL is the public profile lookup endpoint.
const DefaultAPIURL = "https://api.mojang.com/users/profiles/minecraft/"

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 5 * time.Second

// maxBody limits how much of a response is read.
const maxBody = 64 << 10

// Identity is a trusted identity for a display name.
type Identity struct {
	UUID uuid.UUID `json:"uuid"`
	// Name is the canonical capitalization reported by the service.
	Name string `json:"name"`
}

// Client performs the remote lookup. A nil Identity with a nil error means
// the name has no trusted identity.
type Client interface {
	Lookup(ctx context.Context, name string) (*Identity, error)
}

// HTTPClient queries a profile endpoint of the form <base><name>.
type HTTPClient struct {
	base string
	http *http.Client
}

// NewHTTPClient creates a client for baseURL. An empty baseURL selects
// DefaultAPIURL and a zero timeout selects DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, oops.Code("PREMIUM_INVALID_CONFIG").With("api_url", baseURL).Wrap(err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
	}, nil
}

type profileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Lookup implements Client.
func (c *HTTPClient) Lookup(ctx context.Context, name string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+url.PathEscape(name), nil)
	if err != nil {
		return nil, newError(IssueUndefined, name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(IssueServerException, name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(IssueThrottled, name, nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, oops.Code(CodeServerException).
			With("name", name).
			With("status", resp.StatusCode).
			Errorf("identity service returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, oops.Code(CodeUndefined).
			With("name", name).
			With("status", resp.StatusCode).
			Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, newError(IssueServerException, name, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var profile profileResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, newError(IssueUndefined, name, err)
	}
	id, err := uuid.Parse(profile.ID)
	if err != nil {
		return nil, newError(IssueUndefined, name, err)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return &Identity{UUID: id, Name: profile.Name}, nil
}

var _ Client = (*HTTPClient)(nil)
