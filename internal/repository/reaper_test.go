// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/votany/internal/metrics"
	"codeberg.org/oliverandrich/votany/internal/models"
	"codeberg.org/oliverandrich/votany/internal/repository"
	"codeberg.org/oliverandrich/votany/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaper_Sweep(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	clock := withClock(repo)

	testutil.NewTestUser(t, repo, "pending1", false)
	testutil.NewTestUser(t, repo, "verified1", true)
	require.NoError(t, repo.CreateResetToken(ctx, &models.ResetToken{AuthenticateIDHash: "h", Email: "verified1@example.com"}))

	reaper := repository.NewReaper(repo, time.Minute, metrics.New())

	users, tokens, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, users)
	assert.Zero(t, tokens)

	clock.Advance(10 * time.Minute)

	users, tokens, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), tokens)
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := withClock(repo)
	testutil.NewTestUser(t, repo, "pending1", false)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		repository.NewReaper(repo, time.Hour, nil).Run(ctx)
		close(done)
	}()

	// The first sweep runs immediately.
	require.Eventually(t, func() bool {
		var count int
		_ = repo.DB().Get(&count, "SELECT count(*) FROM users")
		return count == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
