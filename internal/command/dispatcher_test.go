// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/access"
	"github.com/holomush/gatekeeper/internal/platform/platformtest"
	"github.com/holomush/gatekeeper/internal/ratelimit"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// keyMessages renders "key k=v ..." so tests can assert on keys.
type keyMessages struct{}

func (keyMessages) Get(key string, replacements ...string) string {
	parts := []string{key}
	for i := 0; i+1 < len(replacements); i += 2 {
		parts = append(parts, replacements[i]+"="+replacements[i+1])
	}
	return strings.Join(parts, " ")
}

type dispatchFixture struct {
	dispatcher *Dispatcher
	reg        *prometheus.Registry
	calls      []*Execution
}

func newDispatchFixture(t *testing.T, opts ...DispatcherOption) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{reg: prometheus.NewRegistry()}
	registry := NewRegistry()
	record := func(_ context.Context, exec *Execution) error {
		f.calls = append(f.calls, exec)
		return nil
	}
	require.NoError(t, registry.Register(Entry{
		Name: "login", Aliases: []string{"l"}, Usage: "login <password>", PlayerOnly: true,
		Handler: func(ctx context.Context, exec *Execution) error {
			if _, err := ExactArgs(exec, "login <password>", 1); err != nil {
				return err
			}
			return record(ctx, exec)
		},
	}))
	require.NoError(t, registry.Register(Entry{Name: "gatekeeper", Staff: true, Handler: record}))
	require.NoError(t, registry.Register(Entry{
		Name: "broken",
		Handler: func(context.Context, *Execution) error {
			return errors.New("database unavailable")
		},
	}))

	d, err := NewDispatcher(registry, append([]DispatcherOption{WithRegistry(f.reg)}, opts...)...)
	require.NoError(t, err)
	f.dispatcher = d
	return f
}

func playerExec(id uuid.UUID) (*Execution, *platformtest.Target) {
	target := platformtest.NewTarget()
	return &Execution{
		Sender:   access.Player(id),
		Name:     "Alice",
		Target:   target,
		Services: &Services{Msgs: keyMessages{}},
	}, target
}

func TestNewDispatcher_RequiresRegistry(t *testing.T) {
	_, err := NewDispatcher(nil)
	errutil.AssertErrorCode(t, err, "COMMAND_INVALID_DEPENDENCY")
}

func TestDispatch_RunsHandlerByAlias(t *testing.T) {
	f := newDispatchFixture(t)
	exec, target := playerExec(uuid.New())

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), "/L hunter22", exec))

	require.Len(t, f.calls, 1)
	assert.Equal(t, "hunter22", f.calls[0].Args)
	assert.Equal(t, "l", f.calls[0].InvokedAs)
	assert.Empty(t, target.Messages())

	expected := `
# HELP gatekeeper_command_executions_total Command executions by command and status
# TYPE gatekeeper_command_executions_total counter
gatekeeper_command_executions_total{command="login",status="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "gatekeeper_command_executions_total"))
}

func TestDispatch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		console bool
		code    string
		reply   string
	}{
		{"unknown command", "fly", false, CodeUnknown, "error-unknown-command"},
		{"bad syntax", "login", false, CodeInvalidArgs, "error-invalid-syntax syntax=login <password>"},
		{"player only on console", "login pw", true, CodeConsoleUnsupported, "error-not-available-on-console"},
		{"staff without permission", "gatekeeper reload config", false, CodePermissionDenied, "error-no-permission"},
		{"handler failure", "broken", false, "", "error-unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture(t)
			exec, target := playerExec(uuid.New())
			if tt.console {
				exec.Sender = access.Console()
				exec.Name = ""
			}

			err := f.dispatcher.Dispatch(context.Background(), tt.input, exec)
			require.Error(t, err)
			if tt.code != "" {
				errutil.AssertErrorCode(t, err, tt.code)
			}
			assert.Equal(t, []string{tt.reply}, target.Messages())
			assert.Empty(t, f.calls)
		})
	}
}

func TestDispatch_EmptyInputIsNotReplied(t *testing.T) {
	f := newDispatchFixture(t)
	exec, target := playerExec(uuid.New())

	err := f.dispatcher.Dispatch(context.Background(), "  ", exec)
	errutil.AssertErrorCode(t, err, CodeEmpty)
	assert.Empty(t, target.Messages())
}

func TestDispatch_ConsoleRunsStaffCommands(t *testing.T) {
	f := newDispatchFixture(t)
	exec := &Execution{Sender: access.Console(), Services: &Services{Msgs: keyMessages{}}}

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), "gatekeeper reload messages", exec))
	require.Len(t, f.calls, 1)
	assert.Equal(t, "reload messages", f.calls[0].Args)
}

func TestDispatch_CustomPermission(t *testing.T) {
	staff := uuid.New()
	f := newDispatchFixture(t, WithPermission(func(_ context.Context, s access.Sender) bool {
		return s.Console || s.ID == staff
	}))

	exec, _ := playerExec(staff)
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), "gatekeeper user info Bob", exec))

	other, _ := playerExec(uuid.New())
	errutil.AssertErrorCode(t, f.dispatcher.Dispatch(context.Background(), "gatekeeper", other), CodePermissionDenied)
}

func TestDispatch_Throttle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := ratelimit.New(ratelimit.Config{Burst: 2, Rate: 0.1, Now: func() time.Time { return now }})
	t.Cleanup(limiter.Close)
	f := newDispatchFixture(t, WithLimiter(limiter))

	id := uuid.New()
	exec, target := playerExec(id)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.Dispatch(ctx, "login a", exec))
	errutil.AssertErrorCode(t, f.dispatcher.Dispatch(ctx, "fly", exec), CodeUnknown)

	err := f.dispatcher.Dispatch(ctx, "login a", exec)
	errutil.AssertErrorCode(t, err, CodeThrottled)
	assert.Equal(t, "error-throttle", target.Messages()[len(target.Messages())-1])

	// Another player has its own bucket and the console is exempt.
	other, _ := playerExec(uuid.New())
	require.NoError(t, f.dispatcher.Dispatch(ctx, "login b", other))
	console := &Execution{Sender: access.Console()}
	for range 5 {
		require.NoError(t, f.dispatcher.Dispatch(ctx, "gatekeeper", console))
	}

	now = now.Add(10 * time.Second)
	require.NoError(t, f.dispatcher.Dispatch(ctx, "login a", exec))

	expected := `
# HELP gatekeeper_command_executions_total Command executions by command and status
# TYPE gatekeeper_command_executions_total counter
gatekeeper_command_executions_total{command="gatekeeper",status="success"} 5
gatekeeper_command_executions_total{command="login",status="success"} 3
gatekeeper_command_executions_total{command="unknown",status="not_found"} 1
gatekeeper_command_executions_total{command="unknown",status="throttled"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "gatekeeper_command_executions_total"))
}

func TestExecution_Caller(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String(), (&Execution{Sender: access.Player(id)}).Caller())
	assert.Equal(t, ConsoleCaller, (&Execution{Sender: access.Console()}).Caller())
}

func TestExecution_ReplyWithoutTarget(t *testing.T) {
	exec := &Execution{Services: &Services{Msgs: keyMessages{}}}
	assert.NotPanics(t, func() { exec.Reply("info-logged-in") })
}
