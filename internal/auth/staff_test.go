// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/crypto"
	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/user"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestStaffRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("premium name keeps its trusted identity", func(t *testing.T) {
		f := newFixture(t)
		identity := premiumIdentity("Alice")
		f.resolver.On("Resolve", mock.Anything, "console", "Alice").Return(identity, nil).Once()

		require.NoError(t, f.staff.Register(ctx, "console", "Alice", "hunter22"))

		u, err := f.users.GetByName(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, identity.UUID, u.UUID)
		assert.Nil(t, u.PremiumUUID)
		ok, err := f.crypto.Verify("hunter22", u.Password())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("other names get the offline identity", func(t *testing.T) {
		f := newFixture(t)
		f.resolver.On("Resolve", mock.Anything, "console", "Bob").Return(nil, nil).Once()

		require.NoError(t, f.staff.Register(ctx, "console", "Bob", "hunter22"))

		u, err := f.users.GetByName(ctx, "Bob")
		require.NoError(t, err)
		assert.Equal(t, user.OfflineUUID("Bob"), u.UUID)
	})

	t.Run("taken name", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.users.Save(ctx, newUser("Alice")))

		err := f.staff.Register(ctx, "console", "ALICE", "hunter22")
		errutil.AssertErrorCode(t, err, auth.CodeNameTaken)
		f.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid name", func(t *testing.T) {
		f := newFixture(t)
		err := f.staff.Register(ctx, "console", "no spaces", "hunter22")
		errutil.AssertErrorCode(t, err, "USER_INVALID_NAME")
	})
}

func TestStaff_RequiresOfflineOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newUser("Alice")
	u.HashedPassword = f.hash(t, crypto.TagBcrypt, "hunter22")
	f.join(t, u)

	ops := map[string]func() error{
		"unregister": func() error { return f.staff.Unregister(ctx, "Alice") },
		"delete":     func() error { return f.staff.Delete(ctx, "Alice") },
		"premium":    func() error { return f.staff.EnablePremium(ctx, "console", "Alice") },
		"cracked":    func() error { return f.staff.Cracked(ctx, "Alice") },
		"migrate":    func() error { return f.staff.Migrate(ctx, "Alice", "Alicia") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			errutil.AssertErrorCode(t, op(), auth.CodeUserOnline)
		})
	}

	stored, err := f.users.GetByUUID(ctx, u.UUID)
	require.NoError(t, err)
	assert.True(t, stored.IsRegistered())
	assert.Equal(t, "Alice", stored.LastNickname)
}

func TestStaffAccountEdits(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture) *user.User {
		u := newUser("Alice")
		u.HashedPassword = f.hash(t, crypto.TagBcrypt, "hunter22")
		require.NoError(t, f.users.Save(ctx, u))
		return u
	}

	t.Run("user info", func(t *testing.T) {
		f := newFixture(t)
		u := seed(t, f)
		got, err := f.staff.UserInfo(ctx, " alice ")
		require.NoError(t, err)
		assert.Equal(t, u.UUID, got.UUID)

		_, err = f.staff.UserInfo(ctx, "nobody")
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
	})

	t.Run("unregister clears the password", func(t *testing.T) {
		f := newFixture(t)
		u := seed(t, f)
		require.NoError(t, f.staff.Unregister(ctx, "Alice"))

		stored, err := f.users.GetByUUID(ctx, u.UUID)
		require.NoError(t, err)
		assert.False(t, stored.IsRegistered())
	})

	t.Run("delete removes the account", func(t *testing.T) {
		f := newFixture(t)
		u := seed(t, f)
		require.NoError(t, f.staff.Delete(ctx, "Alice"))

		_, err := f.users.GetByUUID(ctx, u.UUID)
		require.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("premium without a paid account leaves the user unchanged", func(t *testing.T) {
		f := newFixture(t)
		u := seed(t, f)
		f.resolver.On("Resolve", mock.Anything, "console", "Alice").Return(nil, nil).Once()

		err := f.staff.EnablePremium(ctx, "console", "Alice")
		errutil.AssertErrorCode(t, err, auth.CodeNotPaid)

		stored, err := f.users.GetByUUID(ctx, u.UUID)
		require.NoError(t, err)
		assert.Nil(t, stored.PremiumUUID)
		assert.Empty(t, f.events.Events())
	})

	t.Run("premium then cracked", func(t *testing.T) {
		f := newFixture(t)
		u := seed(t, f)
		identity := premiumIdentity("Alice")
		f.resolver.On("Resolve", mock.Anything, "console", "Alice").Return(identity, nil).Once()

		require.NoError(t, f.staff.EnablePremium(ctx, "console", "Alice"))
		stored, err := f.users.GetByUUID(ctx, u.UUID)
		require.NoError(t, err)
		require.True(t, stored.IsPremium())

		require.NoError(t, f.staff.Cracked(ctx, "Alice"))
		stored, err = f.users.GetByUUID(ctx, u.UUID)
		require.NoError(t, err)
		assert.False(t, stored.IsPremium())

		events := f.events.Events()
		require.Len(t, events, 2)
		assert.True(t, events[0].(event.PremiumLoginSwitch).Enabled)
		assert.False(t, events[1].(event.PremiumLoginSwitch).Enabled)

		// Already cracked: nothing to announce.
		require.NoError(t, f.staff.Cracked(ctx, "Alice"))
		assert.Len(t, f.events.Events(), 2)
	})
}

func TestStaffMigrate(t *testing.T) {
	ctx := context.Background()

	t.Run("renames and drops the trusted identity", func(t *testing.T) {
		f := newFixture(t)
		u := newUser("Alice")
		identity := premiumIdentity("Alice")
		u.PremiumUUID = &identity.UUID
		require.NoError(t, f.users.Save(ctx, u))

		require.NoError(t, f.staff.Migrate(ctx, "Alice", "Alicia"))

		stored, err := f.users.GetByUUID(ctx, u.UUID)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", stored.LastNickname)
		assert.Nil(t, stored.PremiumUUID)
		assert.Len(t, f.events.Events(), 1)

		_, err = f.users.GetByName(ctx, "Alice")
		require.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("case change of the same account", func(t *testing.T) {
		f := newFixture(t)
		u := newUser("alice")
		require.NoError(t, f.users.Save(ctx, u))

		require.NoError(t, f.staff.Migrate(ctx, "alice", "Alice"))
		stored, err := f.users.GetByUUID(ctx, u.UUID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", stored.LastNickname)
		assert.Empty(t, f.events.Events())
	})

	t.Run("target name taken", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.users.Save(ctx, newUser("Alice")))
		require.NoError(t, f.users.Save(ctx, newUser("Bob")))

		err := f.staff.Migrate(ctx, "Alice", "bob")
		errutil.AssertErrorCode(t, err, auth.CodeNameTaken)
	})

	t.Run("invalid target name", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.users.Save(ctx, newUser("Alice")))
		err := f.staff.Migrate(ctx, "Alice", "x")
		errutil.AssertErrorCode(t, err, "USER_INVALID_NAME")
	})
}
