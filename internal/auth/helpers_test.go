// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/crypto"
	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/platform/platformtest"
	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/internal/routing"
	"github.com/holomush/gatekeeper/internal/session"
	"github.com/holomush/gatekeeper/internal/user"
)

// mockResolver is a testify mock of auth.Resolver.
type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, caller, name string) (*premium.Identity, error) {
	args := m.Called(ctx, caller, name)
	id, _ := args.Get(0).(*premium.Identity)
	return id, args.Error(1)
}

// keyMessages renders a message as its key followed by replacement values.
type keyMessages struct{}

func (keyMessages) Get(key string, replacements ...string) string {
	if len(replacements) == 0 {
		return key
	}
	return key + " " + strings.Join(replacements, " ")
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Handle(_ context.Context, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

type fixture struct {
	users     *user.MemoryStore
	proxy     *platformtest.Proxy
	scheduler *platformtest.Scheduler
	tracker   *session.Tracker
	bus       *event.Bus
	events    *recorder
	crypto    *crypto.Registry
	resolver  *mockResolver
	router    *routing.Router
	engine    *auth.Engine
	service   *auth.Service
	staff     *auth.StaffService
}

func newTestRegistry(t *testing.T) *crypto.Registry {
	t.Helper()
	reg, err := crypto.NewRegistry(crypto.TagBcrypt,
		crypto.NewBcryptProvider(bcrypt.MinCost),
		crypto.NewSHA256Provider(),
		crypto.NewSHA512Provider(),
	)
	require.NoError(t, err)
	return reg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:     user.NewMemoryStore(),
		proxy:     platformtest.NewProxy("limbo", "lobby-1", "lobby-2"),
		scheduler: platformtest.NewScheduler(),
		bus:       event.NewBus(),
		events:    &recorder{},
		crypto:    newTestRegistry(t),
		resolver:  &mockResolver{},
	}
	f.bus.Subscribe(f.events)

	var err error
	f.tracker, err = session.NewTracker(f.scheduler, auth.NewPrompter(f.users, keyMessages{}, false, nil))
	require.NoError(t, err)

	f.router, err = routing.NewRouter(f.proxy)
	require.NoError(t, err)
	require.NoError(t, f.router.Configure([]string{"limbo"}, []string{"lobby-*"}))

	f.engine, err = auth.NewEngine(f.tracker, f.bus, f.proxy, f.router, keyMessages{})
	require.NoError(t, err)

	deps := auth.Deps{
		Users:    f.users,
		Crypto:   f.crypto,
		Engine:   f.engine,
		Resolver: f.resolver,
		Bus:      f.bus,
		Proxy:    f.proxy,
		Msgs:     keyMessages{},
	}
	f.service, err = auth.NewService(deps)
	require.NoError(t, err)
	f.staff, err = auth.NewStaffService(deps)
	require.NoError(t, err)
	return f
}

// join stores u (when non-nil), marks it online and tracks it as unauthorized.
func (f *fixture) join(t *testing.T, u *user.User) *platformtest.Target {
	t.Helper()
	require.NoError(t, f.users.Save(context.Background(), u))
	target := platformtest.NewTarget()
	f.proxy.Join(u.UUID, target)
	f.tracker.StartTracking(u.UUID, target)
	return target
}

func (f *fixture) hash(t *testing.T, tag, password string) *string {
	t.Helper()
	h, err := f.crypto.CreateHash(tag, password)
	require.NoError(t, err)
	return &h
}

func newUser(name string) *user.User {
	return user.New(user.OfflineUUID(name), nil, nil, name)
}

func premiumIdentity(name string) *premium.Identity {
	return &premium.Identity{UUID: uuid.New(), Name: name}
}
