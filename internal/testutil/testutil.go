// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/votany/internal/database"
	"codeberg.org/oliverandrich/votany/internal/models"
	"codeberg.org/oliverandrich/votany/internal/repository"
	"codeberg.org/oliverandrich/votany/internal/services/auth"
	"codeberg.org/oliverandrich/votany/internal/services/email"
)

// Password satisfies every password rule.
const Password = "Secret-Pass1"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestUser creates a user with Password. Unverified users get a
// verification deadline ten minutes ahead of the repository clock.
func NewTestUser(t *testing.T, repo *repository.Repository, screenName string, verified bool) *models.User {
	t.Helper()
	salt, hash, err := auth.HashPassword(Password)
	require.NoError(t, err)

	user := &models.User{
		ScreenName: screenName,
		Email:      screenName + "@example.com",
		PassSalt:   salt,
		PassHash:   hash,
		Verified:   verified,
	}
	if !verified {
		user.VerifyIDHash = email.HashToken("verify-" + screenName)
		user.VerifyExpiresAt = repo.Now().Add(10 * time.Minute)
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Notifier records sent messages. Set Err to make every send fail.
type Notifier struct {
	Err      error
	mu       sync.Mutex
	messages []email.Message
}

func (n *Notifier) Send(_ context.Context, msg email.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, msg)
	return nil
}

// Messages returns a copy of all recorded messages.
func (n *Notifier) Messages() []email.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]email.Message(nil), n.messages...)
}

// Last returns the most recent message of kind, failing the test if there is none.
func (n *Notifier) Last(t *testing.T, kind email.Kind) email.Message {
	t.Helper()
	msgs := n.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == kind {
			return msgs[i]
		}
	}
	require.Failf(t, "no message sent", "kind %s", kind)
	return email.Message{}
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := NewEchoContext(e, method, path, body)
	for k, v := range headers {
		c.Request().Header.Set(k, v)
	}
	return c, rec
}
