// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/votany/internal/services/polls"
	"codeberg.org/oliverandrich/votany/internal/testutil"
)

// readEvent returns the next event name and data, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "":
			if name != "" || data != "" {
				return name, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestPollEvents(t *testing.T) {
	f := newFixture(t)
	f.h.SetHeartbeat(20 * time.Millisecond)
	bobby := testutil.NewTestUser(t, f.repo, "bobby1", true)
	alice := testutil.NewTestUser(t, f.repo, "alice1", true)
	id := f.createPoll(t, bobby, `{"issue":"Best editor?","choices":["vim","emacs"]}`)

	f.e.GET("/api/poll/:pollId/events", f.h.PollEvents)
	srv := httptest.NewServer(f.e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/poll/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := bufio.NewReader(resp.Body)

	name, data := readEvent(t, r)
	assert.Equal(t, "tally", name)
	var tally polls.Tally
	require.NoError(t, json.Unmarshal([]byte(data), &tally))
	assert.Equal(t, []int{0, 0}, tally.Votes)

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	c, _ := f.request(http.MethodPut, "/", `{"index":1}`, alice, "pollId", id)
	require.NoError(t, f.h.Vote(c))

	name, data = readEvent(t, r)
	assert.Equal(t, "tally", name)
	tally = polls.Tally{}
	require.NoError(t, json.Unmarshal([]byte(data), &tally))
	assert.Equal(t, id, tally.ID)
	assert.Equal(t, []int{0, 1}, tally.Votes)
	assert.Equal(t, 1, tally.TotalVotes)

	// Disconnecting unsubscribes the stream
	cancel()
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPollEvents_UnknownPoll(t *testing.T) {
	f := newFixture(t)
	c, _ := f.request(http.MethodGet, "/", "", nil, "pollId", "missing")

	requireAppErr(t, f.h.PollEvents(c), http.StatusNotFound)
	assert.Zero(t, f.hub.ClientCount())
}
