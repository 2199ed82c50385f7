// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/votany/internal/apperr"
	"codeberg.org/oliverandrich/votany/internal/ctxkeys"
	"codeberg.org/oliverandrich/votany/internal/models"
	"codeberg.org/oliverandrich/votany/internal/services/auth"
)

// Identifier resolves a bearer token to a verified user.
type Identifier interface {
	Identify(ctx context.Context, token string) (*models.User, error)
}

// Identify puts the user named by a valid bearer token into the request
// context. Requests without a token, or with a rejected one, continue
// anonymously; the rejection is kept for RequireAuth. Only server-side
// failures stop the request.
func Identify(identifier Identifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			user, err := identifier.Identify(ctx, token)
			switch {
			case err == nil:
				ctx = context.WithValue(ctx, ctxkeys.User{}, user)
			case apperr.StatusOf(err) == http.StatusInternalServerError:
				return err
			default:
				ctx = context.WithValue(ctx, ctxkeys.AuthError{}, err)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAuth rejects requests without an identified user.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if GetUser(ctx) != nil {
			return next(c)
		}
		if err, ok := ctx.Value(ctxkeys.AuthError{}).(error); ok {
			return err
		}
		return auth.ErrNotLoggedIn
	}
}

// GetUser returns the identified user, or nil for anonymous requests.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}

// ScreenName returns the identified user's screen name, or "".
func ScreenName(c echo.Context) string {
	if user := GetUser(c.Request().Context()); user != nil {
		return user.ScreenName
	}
	return ""
}

// VoterIdentity is the screen name of the identified user, else the client
// address: the first X-Forwarded-For entry, or the remote address.
func VoterIdentity(c echo.Context) string {
	if name := ScreenName(c); name != "" {
		return name
	}
	return c.RealIP()
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
