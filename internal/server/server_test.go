// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/votany/internal/config"
	"codeberg.org/oliverandrich/votany/internal/handlers"
	"codeberg.org/oliverandrich/votany/internal/i18n"
	"codeberg.org/oliverandrich/votany/internal/server"
	"codeberg.org/oliverandrich/votany/internal/services/auth"
	"codeberg.org/oliverandrich/votany/internal/services/email"
	"codeberg.org/oliverandrich/votany/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080, MaxBodySize: 1},
		Auth: config.AuthConfig{
			JWTSecret:     strings.Repeat("s", 32),
			TokenLifetime: time.Hour,
			VerifyTTL:     10 * time.Minute,
			ResetTTL:      10 * time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

type client struct {
	t   *testing.T
	app *server.App
}

func newClient(t *testing.T) (*client, *testutil.Notifier) {
	t.Helper()
	require.NoError(t, i18n.Init())
	db, _ := testutil.NewTestDB(t)
	notifier := &testutil.Notifier{}
	app, err := server.New(testConfig(), db, server.WithNotifier(notifier))
	require.NoError(t, err)
	return &client{t: t, app: app}, notifier
}

func (c *client) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (c *client) registerAndLogin(notifier *testutil.Notifier, screenName string) string {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/user/register", "", handlers.RegisterRequest{
		ScreenName:   screenName,
		EmailAddress: screenName + "@example.com",
		Password:     testutil.Password,
		Confirm:      testutil.Password,
	})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	verifyID := notifier.Last(c.t, email.KindAccountVerification).Params.Token
	rec = c.do(http.MethodGet, "/api/user/verify/"+verifyID, "", nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/user/login", "", handlers.LoginRequest{
		ScreenName: screenName,
		Password:   testutil.Password,
	})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[auth.LoginResult](c.t, rec).Token
}

func TestHealth(t *testing.T) {
	c, _ := newClient(t)

	rec := c.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPollLifecycle(t *testing.T) {
	c, notifier := newClient(t)
	token := c.registerAndLogin(notifier, "bobby1")

	rec := c.do(http.MethodGet, "/api/user/testlogin", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bobby1", decode[handlers.TestLoginResponse](t, rec).ScreenName)

	rec = c.do(http.MethodPost, "/api/poll/create", token, handlers.CreatePollRequest{
		Issue:    "Tabs or spaces?",
		Keywords: "style editor",
		Choices:  []string{"Tabs", "Spaces"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[handlers.CreatePollResponse](t, rec)
	require.NotEmpty(t, created.PollID)

	// The author may not vote on their own poll
	one := 1
	rec = c.do(http.MethodPut, "/api/poll/vote/"+created.PollID, token, handlers.VoteRequest{Index: &one})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Anonymous voters are identified by address
	rec = c.do(http.MethodPut, "/api/poll/vote/"+created.PollID, "", handlers.VoteRequest{Index: &one})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	voted := decode[handlers.PollResponse](t, rec)
	assert.Equal(t, "Your vote has been cast!", voted.Message)
	assert.Equal(t, 1, voted.Poll.TotalVotes)
	assert.Equal(t, 1, voted.Poll.VotedFor)

	rec = c.do(http.MethodPut, "/api/poll/vote/"+created.PollID, "", handlers.VoteRequest{Index: &one})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodGet, "/api/poll/search?q=editor", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[handlers.PollListResponse](t, rec)
	require.Len(t, found.Polls, 1)
	assert.Equal(t, created.PollID, found.Polls[0].ID)

	rec = c.do(http.MethodGet, "/api/user/profile/bobby1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"registrationDate"`)

	rec = c.do(http.MethodDelete, "/api/poll/delete/"+created.PollID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/api/poll/"+created.PollID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `votany_votes_total{result="OK"} 1`)
	assert.Contains(t, rec.Body.String(), "votany_polls_deleted_total 1")
}

func TestErrorEnvelope(t *testing.T) {
	c, _ := newClient(t)

	rec := c.do(http.MethodPost, "/api/user/register", "", handlers.RegisterRequest{
		ScreenName:   "bob",
		EmailAddress: "bob@example.com",
		Password:     testutil.Password,
		Confirm:      testutil.Password,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[handlers.ErrorResponse](t, rec)
	assert.Equal(t, http.StatusBadRequest, body.Error.Status)
	assert.Equal(t, "Failed to validate registration credentials.", body.Error.Message)
	assert.Contains(t, body.Error.Details, "Screen names must be between 6 and 20.")
}

func TestAuthRequired(t *testing.T) {
	c, _ := newClient(t)

	rec := c.do(http.MethodPost, "/api/poll/create", "", handlers.CreatePollRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.ErrNotLoggedIn.Message, decode[handlers.ErrorResponse](t, rec).Error.Message)

	rec = c.do(http.MethodGet, "/api/user/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.ErrLoginExpired.Message, decode[handlers.ErrorResponse](t, rec).Error.Message)
}

func TestTrailingSlashAndUnknownRoute(t *testing.T) {
	c, _ := newClient(t)

	rec := c.do(http.MethodGet, "/api/poll/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/api/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	c, notifier := newClient(t)
	c.registerAndLogin(notifier, "alice1")

	rec := c.do(http.MethodPost, "/api/user/requestPasswordReset", "", handlers.ResetRequest{EmailAddress: "alice1@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	authID := notifier.Last(t, email.KindPasswordResetRequested).Params.Token

	rec = c.do(http.MethodGet, "/api/user/authenticatePasswordReset/"+authID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/user/changePassword/"+authID, "", handlers.ChangePasswordRequest{
		Password: "Other-Pass2",
		Confirm:  "Other-Pass2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/user/login", "", handlers.LoginRequest{ScreenName: "alice1", Password: "Other-Pass2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/api/user/login", "", handlers.LoginRequest{ScreenName: "alice1", Password: testutil.Password})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNew_MetricsDisabled(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	cfg := testConfig()
	cfg.Metrics.Enabled = false

	app, err := server.New(cfg, db, server.WithNotifier(&testutil.Notifier{}))
	require.NoError(t, err)
	assert.Nil(t, app.Metrics)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
