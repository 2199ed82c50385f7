// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/votany/internal/models"
	"codeberg.org/oliverandrich/votany/internal/repository"
	"codeberg.org/oliverandrich/votany/internal/services/email"
	"codeberg.org/oliverandrich/votany/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock(repo *repository.Repository) *testutil.Clock {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo.SetClock(clock.Now)
	return clock
}

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "bobby1", true)

	assert.NotEmpty(t, user.ID)
	assert.False(t, user.RegisteredAt.IsZero())

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bobby1", got.ScreenName)
	assert.Equal(t, "bobby1@example.com", got.Email)
	assert.Equal(t, user.PassHash, got.PassHash)
	assert.True(t, got.Verified)
	assert.Empty(t, got.VerifyIDHash)
	assert.Equal(t, []string{}, got.Following)
	assert.Equal(t, user.RegisteredAt.Unix(), got.RegisteredAt.Unix())
}

func TestCreateUser_Duplicates(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "bobby1", true)

	err := repo.CreateUser(ctx, &models.User{
		ScreenName: "bobby1", Email: "other@example.com", PassSalt: "s", PassHash: "h", Verified: true,
	})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	err = repo.CreateUser(ctx, &models.User{
		ScreenName: "other1", Email: "bobby1@example.com", PassSalt: "s", PassHash: "h", Verified: true,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestCreateUser_ReplacesExpiredUnverified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	clock := withClock(repo)

	stale := testutil.NewTestUser(t, repo, "bobby1", false)
	clock.Advance(10 * time.Minute)

	fresh := &models.User{
		ScreenName: "bobby1", Email: "new@example.com", PassSalt: "s", PassHash: "h", Verified: true,
	}
	require.NoError(t, repo.CreateUser(ctx, fresh))

	_, err := repo.GetUserByID(ctx, stale.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	got, err := repo.GetUserByScreenName(ctx, "bobby1")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
}

func TestGetUser_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetUserByScreenName(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUser_HidesExpiredUnverified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	clock := withClock(repo)

	testutil.NewTestUser(t, repo, "pending1", false)
	testutil.NewTestUser(t, repo, "verified1", true)

	_, err := repo.GetUserByScreenName(ctx, "pending1")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	_, err = repo.GetUserByScreenName(ctx, "pending1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetUserByEmail(ctx, "pending1@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetUserByScreenName(ctx, "verified1")
	assert.NoError(t, err)
}

func TestVerifyUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "pending1", false)

	user, err := repo.VerifyUser(ctx, email.HashToken("verify-pending1"))

	require.NoError(t, err)
	assert.True(t, user.Verified)
	assert.Empty(t, user.VerifyIDHash)
	assert.True(t, user.VerifyExpiresAt.IsZero())

	_, err = repo.VerifyUser(ctx, email.HashToken("verify-pending1"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerifyUser_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	clock := withClock(repo)
	testutil.NewTestUser(t, repo, "pending1", false)

	clock.Advance(11 * time.Minute)

	_, err := repo.VerifyUser(ctx, email.HashToken("verify-pending1"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "bobby1", true)

	user.PassSalt = "new-salt"
	user.PassHash = "new-hash"
	user.Following = []string{"carol1"}
	require.NoError(t, repo.UpdateUser(ctx, user))

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-salt", got.PassSalt)
	assert.Equal(t, "new-hash", got.PassHash)
	assert.Equal(t, []string{"carol1"}, got.Following)
}

func TestUpdateUser_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.UpdateUser(context.Background(), &models.User{ID: "missing", Verified: true})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "bobby1", false)

	require.NoError(t, repo.DeleteUser(ctx, user.ID))

	_, err := repo.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteUser(ctx, user.ID), repository.ErrNotFound)
}

func TestDeleteExpiredUsers(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	clock := withClock(repo)

	testutil.NewTestUser(t, repo, "pending1", false)
	testutil.NewTestUser(t, repo, "verified1", true)

	n, err := repo.DeleteExpiredUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(10 * time.Minute)

	n, err = repo.DeleteExpiredUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int
	require.NoError(t, repo.DB().Get(&count, "SELECT count(*) FROM users"))
	assert.Equal(t, 1, count)
}

func TestCreateUser_DuplicateColumn(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "bobby1", true)

	err := repo.CreateUser(context.Background(), &models.User{
		ScreenName: "other1", Email: "bobby1@example.com", PassSalt: "s", PassHash: "h", Verified: true,
	})

	var dup *repository.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Column)
}
