// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/votany/internal/apperr"
	"codeberg.org/oliverandrich/votany/internal/config"
	"codeberg.org/oliverandrich/votany/internal/models"
	"codeberg.org/oliverandrich/votany/internal/repository"
)

var (
	ErrNotLoggedIn  = apperr.Unauthorized("You need to be logged in to use this feature.")
	ErrLoginExpired = apperr.Unauthorized("Your login token has expired. You need to log in again.")
	ErrNotVerified  = apperr.Unauthorized("This account is not yet verified.")
	ErrBadPassword  = apperr.Unauthorized("The password submitted is incorrect.")
)

// UserLookup is the part of the credential store the auth service reads.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByScreenName(ctx context.Context, screenName string) (*models.User, error)
}

type Service struct {
	users  UserLookup
	tokens *TokenIssuer
}

func NewService(users UserLookup, cfg *config.AuthConfig) *Service {
	return &Service{
		users:  users,
		tokens: NewTokenIssuer(cfg.JWTSecret, cfg.TokenLifetime),
	}
}

// Tokens returns the bearer token issuer.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Message    string `json:"message"`
	ScreenName string `json:"screenName"`
	Token      string `json:"token"`
}

// Login checks the credentials and issues a bearer token. Every failure is
// a 401; only the message tells unknown user, unverified account and wrong
// password apart.
func (s *Service) Login(ctx context.Context, screenName, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByScreenName(ctx, screenName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: derive anyway so response timing does not reveal the user
			_ = CheckPassword(password, dummySalt, "")
			slog.Warn("login_failed", "screen_name", screenName, "reason", "user_not_found")
			return nil, apperr.Unauthorized(fmt.Sprintf("User %q not found.", screenName))
		}
		return nil, apperr.Internal("Authentication error. Try again later.", err)
	}

	if !user.Verified {
		_ = CheckPassword(password, dummySalt, "")
		slog.Warn("login_failed", "screen_name", screenName, "reason", "not_verified")
		return nil, ErrNotVerified
	}

	if !CheckPassword(password, user.PassSalt, user.PassHash) {
		slog.Warn("login_failed", "screen_name", screenName, "reason", "invalid_password")
		return nil, ErrBadPassword
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperr.Internal("Authentication error. Try again later.", err)
	}

	slog.Info("login_success", "user_id", user.ID, "screen_name", user.ScreenName)
	return &LoginResult{
		Message:    fmt.Sprintf("Welcome, %s!", user.ScreenName),
		ScreenName: user.ScreenName,
		Token:      token,
	}, nil
}

// Identify resolves a bearer token to a verified user.
func (s *Service) Identify(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrLoginExpired.WithCause(err)
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLoginExpired
		}
		return nil, apperr.Internal("Due to an error on our side, we were unable to check your login status. Try again later.", err)
	}
	if !user.Verified {
		return nil, ErrLoginExpired
	}
	return user, nil
}
