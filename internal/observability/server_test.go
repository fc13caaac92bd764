// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer("127.0.0.1:0", "1.2.3")
	s.Metrics().PlayersOnline.Set(4)
	s.Metrics().RecordReload("messages", nil)
	s.Metrics().RecordReload("configuration", errors.New("bad yaml"))

	code, body := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `gatekeeper_build_info{version="1.2.3"} 1`)
	assert.Contains(t, body, "gatekeeper_players_online 4")

	expected := `
# HELP gatekeeper_reloads_total Configuration and message reloads by target and result
# TYPE gatekeeper_reloads_total counter
gatekeeper_reloads_total{result="failure",target="configuration"} 1
gatekeeper_reloads_total{result="success",target="messages"} 1
`
	require.NoError(t, testutil.GatherAndCompare(s.Gatherer(), strings.NewReader(expected), "gatekeeper_reloads_total"))
}

func TestServer_Probes(t *testing.T) {
	s := NewServer("127.0.0.1:0", "dev")

	code, body := get(t, s.Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	code, _ = get(t, s.Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code, "no checks means ready")

	s.AddCheck("postgres", func(context.Context) error { return nil })
	s.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	s.AddCheck("kafka", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		return errors.New("no brokers")
	})

	code, body = get(t, s.Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready: kafka, redis\n", body)

	s.AddCheck("redis", func(context.Context) error { return nil })
	s.AddCheck("kafka", func(context.Context) error { return nil })
	code, _ = get(t, s.Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", "dev")
	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_RUNNING")

	resp, err := http.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "second stop is a no-op")

	select {
	case serveErr, ok := <-errCh:
		assert.False(t, ok, "unexpected serve error: %v", serveErr)
	case <-time.After(5 * time.Second):
		t.Fatal("error channel not closed after stop")
	}
}

func TestServer_StartBadAddr(t *testing.T) {
	s := NewServer("256.0.0.1:99999", "dev")
	_, err := s.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")

	// A failed start can be retried.
	s.addr = "127.0.0.1:0"
	_, err = s.Start()
	require.NoError(t, err)
	require.NoError(t, s.Stop(context.Background()))
}
