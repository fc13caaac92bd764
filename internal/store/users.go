// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/user"
)

// Unique indexes created by the migrations.
const (
	nameConstraint    = "users_last_nickname_lower_key"
	premiumConstraint = "users_premium_uuid_key"
)

const userColumns = `uuid::text, premium_uuid::text, hashed_password, last_nickname, last_seen, joined`

// UserRepository implements user.Store using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a PostgreSQL user repository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByName retrieves a user by name, ignoring case.
func (r *UserRepository) GetByName(ctx context.Context, name string) (*user.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE lower(last_nickname) = lower($1)
	`, name)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("name", name).Wrap(user.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("name", name).Wrap(err)
	}
	return u, nil
}

// GetByUUID retrieves a user by account identity.
func (r *UserRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE uuid = $1
	`, id.String())
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("uuid", id.String()).Wrap(user.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("uuid", id.String()).Wrap(err)
	}
	return u, nil
}

// GetByPremiumUUID retrieves the user bound to a premium identity.
func (r *UserRepository) GetByPremiumUUID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE premium_uuid = $1
	`, id.String())
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("premium_uuid", id.String()).Wrap(user.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("premium_uuid", id.String()).Wrap(err)
	}
	return u, nil
}

// Save inserts or updates u.
// Fails with USER_NAME_TAKEN or USER_PREMIUM_TAKEN when another account
// already holds the name or premium identity.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (uuid, premium_uuid, hashed_password, last_nickname, last_seen, joined)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uuid) DO UPDATE SET
			premium_uuid = EXCLUDED.premium_uuid,
			hashed_password = EXCLUDED.hashed_password,
			last_nickname = EXCLUDED.last_nickname,
			last_seen = EXCLUDED.last_seen
	`, u.UUID.String(), uuidToStringPtr(u.PremiumUUID), u.HashedPassword, u.LastNickname,
		u.LastSeen, u.JoinDate)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case nameConstraint:
			return oops.Code("USER_NAME_TAKEN").With("name", u.LastNickname).Wrap(err)
		case premiumConstraint:
			return oops.Code("USER_PREMIUM_TAKEN").With("name", u.LastNickname).Wrap(err)
		}
	}
	return oops.Code("USER_SAVE_FAILED").With("uuid", u.UUID.String()).Wrap(err)
}

// Delete removes u. Deleting a missing user is not an error.
func (r *UserRepository) Delete(ctx context.Context, u *user.User) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM users WHERE uuid = $1`, u.UUID.String()); err != nil {
		return oops.Code("USER_DELETE_FAILED").With("uuid", u.UUID.String()).Wrap(err)
	}
	return nil
}

// Count returns the number of stored users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, oops.Code("USER_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

// scanUser reads one row selected with userColumns.
func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u          user.User
		idStr      string
		premiumStr *string
		lastSeen   time.Time
		joined     time.Time
	)
	if err := row.Scan(&idStr, &premiumStr, &u.HashedPassword, &u.LastNickname, &lastSeen, &joined); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT").With("uuid", idStr).Wrap(err)
	}
	u.UUID = id
	if premiumStr != nil {
		premiumID, err := uuid.Parse(*premiumStr)
		if err != nil {
			return nil, oops.Code("USER_CORRUPT").With("uuid", idStr).With("premium_uuid", *premiumStr).Wrap(err)
		}
		u.PremiumUUID = &premiumID
	}
	u.LastSeen = lastSeen.UTC()
	u.JoinDate = joined.UTC()
	return &u, nil
}

func uuidToStringPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

var _ user.Store = (*UserRepository)(nil)
