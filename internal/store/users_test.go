// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/user"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var userRowColumns = []string{"uuid", "premium_uuid", "hashed_password", "last_nickname", "last_seen", "joined"}

func strPtr(s string) *string { return &s }

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func TestUserRepository_GetByName(t *testing.T) {
	id := user.OfflineUUID("Alice")
	premiumID := uuid.New()
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	joined := time.Date(2025, 12, 24, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		check     func(t *testing.T, u *user.User, err error)
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE lower\(last_nickname\) = lower\(\$1\)`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows(userRowColumns).
						AddRow(id.String(), strPtr(premiumID.String()), strPtr("BCRYPT2A:x"), "Alice", seen, joined))
			},
			check: func(t *testing.T, u *user.User, err error) {
				require.NoError(t, err)
				assert.Equal(t, id, u.UUID)
				require.NotNil(t, u.PremiumUUID)
				assert.Equal(t, premiumID, *u.PremiumUUID)
				assert.Equal(t, "BCRYPT2A:x", u.Password())
				assert.Equal(t, "Alice", u.LastNickname)
				assert.Equal(t, seen, u.LastSeen)
				assert.Equal(t, joined, u.JoinDate)
			},
		},
		{
			name: "unregistered cracked account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE lower\(last_nickname\)`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows(userRowColumns).
						AddRow(id.String(), (*string)(nil), (*string)(nil), "Alice", seen, joined))
			},
			check: func(t *testing.T, u *user.User, err error) {
				require.NoError(t, err)
				assert.False(t, u.IsPremium())
				assert.False(t, u.IsRegistered())
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE lower\(last_nickname\)`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows(userRowColumns))
			},
			check: func(t *testing.T, _ *user.User, err error) {
				require.ErrorIs(t, err, user.ErrNotFound)
				errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
			},
		},
		{
			name: "query failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE lower\(last_nickname\)`).
					WithArgs("alice").
					WillReturnError(errors.New("connection refused"))
			},
			check: func(t *testing.T, _ *user.User, err error) {
				errutil.AssertErrorCode(t, err, "USER_GET_FAILED")
				assert.NotErrorIs(t, err, user.ErrNotFound)
			},
		},
		{
			name: "corrupt identity",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE lower\(last_nickname\)`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows(userRowColumns).
						AddRow("not-a-uuid", (*string)(nil), (*string)(nil), "Alice", seen, joined))
			},
			check: func(t *testing.T, _ *user.User, err error) {
				errutil.AssertErrorCode(t, err, "USER_CORRUPT")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			tt.setupMock(mock)

			u, err := repo.GetByName(context.Background(), "alice")
			tt.check(t, u, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByUUIDAndPremium(t *testing.T) {
	id := uuid.New()
	premiumID := uuid.New()
	now := time.Now().UTC()

	mock, repo := newMockRepo(t)
	mock.ExpectQuery(`FROM users WHERE uuid = \$1`).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(id.String(), strPtr(premiumID.String()), (*string)(nil), "Notch", now, now))
	mock.ExpectQuery(`FROM users WHERE premium_uuid = \$1`).
		WithArgs(premiumID.String()).
		WillReturnRows(pgxmock.NewRows(userRowColumns))

	u, err := repo.GetByUUID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Notch", u.LastNickname)

	_, err = repo.GetByPremiumUUID(context.Background(), premiumID)
	require.ErrorIs(t, err, user.ErrNotFound)
	errutil.AssertErrorContext(t, err, "premium_uuid", premiumID.String())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Save(t *testing.T) {
	u := user.New(user.OfflineUUID("Alice"), nil, strPtr("BCRYPT2A:x"), "Alice")

	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "upsert"},
		{
			name: "name held by another account",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: nameConstraint},
			code: "USER_NAME_TAKEN",
		},
		{
			name: "premium identity held by another account",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: premiumConstraint},
			code: "USER_PREMIUM_TAKEN",
		},
		{
			name: "other failure",
			err:  errors.New("connection reset"),
			code: "USER_SAVE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			exp := mock.ExpectExec(`INSERT INTO users .* ON CONFLICT \(uuid\) DO UPDATE`).
				WithArgs(u.UUID.String(), pgxmock.AnyArg(), pgxmock.AnyArg(), "Alice", u.LastSeen, u.JoinDate)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := repo.Save(context.Background(), u)
			if tt.code == "" {
				require.NoError(t, err)
			} else {
				errutil.AssertErrorCode(t, err, tt.code)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Delete(t *testing.T) {
	u := user.New(uuid.New(), nil, nil, "Alice")

	mock, repo := newMockRepo(t)
	mock.ExpectExec(`DELETE FROM users WHERE uuid = \$1`).
		WithArgs(u.UUID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM users`).
		WithArgs(u.UUID.String()).
		WillReturnError(errors.New("connection reset"))

	require.NoError(t, repo.Delete(context.Background(), u), "deleting a missing row is not an error")
	errutil.AssertErrorCode(t, repo.Delete(context.Background(), u), "USER_DELETE_FAILED")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Count(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
