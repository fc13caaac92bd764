// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/internal/user"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var _ = Describe("PostgreSQL user store", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
		repo      *store.UserRepository
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("gatekeeper_test"),
			postgres.WithUsername("gatekeeper"),
			postgres.WithPassword("gatekeeper"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Open(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		repo = store.NewUserRepository(pool)
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	BeforeEach(func() {
		_, err := pool.Exec(ctx, `TRUNCATE users`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips an account", func() {
		premiumID := uuid.New()
		hash := "BCRYPT2A:$2a$10$abc"
		u := user.New(user.OfflineUUID("Alice"), &premiumID, &hash, "Alice")
		Expect(repo.Save(ctx, u)).To(Succeed())

		got, err := repo.GetByName(ctx, "ALICE")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UUID).To(Equal(u.UUID))
		Expect(*got.PremiumUUID).To(Equal(premiumID))
		Expect(got.Password()).To(Equal(hash))

		got, err = repo.GetByPremiumUUID(ctx, premiumID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.LastNickname).To(Equal("Alice"))
	})

	It("updates in place on save", func() {
		u := user.New(user.OfflineUUID("Alice"), nil, nil, "Alice")
		Expect(repo.Save(ctx, u)).To(Succeed())

		u.SetPassword("SHA-256:x")
		u.LastNickname = "alice"
		Expect(repo.Save(ctx, u)).To(Succeed())

		n, err := repo.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		got, err := repo.GetByUUID(ctx, u.UUID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.LastNickname).To(Equal("alice"))
		Expect(got.IsRegistered()).To(BeTrue())
	})

	It("rejects a name held by another account", func() {
		Expect(repo.Save(ctx, user.New(uuid.New(), nil, nil, "Alice"))).To(Succeed())
		err := repo.Save(ctx, user.New(uuid.New(), nil, nil, "aLiCe"))
		Expect(errutil.Code(err)).To(Equal("USER_NAME_TAKEN"))
	})

	It("rejects a premium identity held by another account", func() {
		premiumID := uuid.New()
		Expect(repo.Save(ctx, user.New(uuid.New(), &premiumID, nil, "Alice"))).To(Succeed())
		err := repo.Save(ctx, user.New(uuid.New(), &premiumID, nil, "Bob"))
		Expect(errutil.Code(err)).To(Equal("USER_PREMIUM_TAKEN"))
	})

	It("deletes accounts", func() {
		u := user.New(uuid.New(), nil, nil, "Alice")
		Expect(repo.Save(ctx, u)).To(Succeed())
		Expect(repo.Delete(ctx, u)).To(Succeed())

		_, err := repo.GetByUUID(ctx, u.UUID)
		Expect(err).To(MatchError(user.ErrNotFound))
	})

	It("steps the schema down and up", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Pending).To(BeEmpty())
		latest := st.Version

		Expect(migrator.Steps(-1)).To(Succeed())
		st, err = migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(Equal(latest - 1))
		Expect(st.Pending).To(ConsistOf(latest))

		Expect(migrator.Up()).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest))
		Expect(dirty).To(BeFalse())
	})
})
