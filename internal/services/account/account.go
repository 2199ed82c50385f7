// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package account runs the registration, verification and password reset
// pipelines. Each operation is a fail-fast sequence of store and email
// steps; only the email steps roll back what came before them.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/votany/internal/apperr"
	"codeberg.org/oliverandrich/votany/internal/config"
	"codeberg.org/oliverandrich/votany/internal/metrics"
	"codeberg.org/oliverandrich/votany/internal/models"
	"codeberg.org/oliverandrich/votany/internal/repository"
	"codeberg.org/oliverandrich/votany/internal/services/auth"
	"codeberg.org/oliverandrich/votany/internal/services/email"
)

const (
	defaultVerifyTTL    = 10 * time.Minute
	defaultEmailTimeout = 10 * time.Second
)

var (
	ErrSendEmail        = apperr.New(http.StatusInternalServerError, "Error sending email. Try again later.")
	ErrSaveUser         = apperr.New(http.StatusInternalServerError, "Error saving user. Try again later.")
	ErrSaveToken        = apperr.New(http.StatusInternalServerError, "Error saving token. Try again later.")
	ErrSearchUsers      = apperr.New(http.StatusInternalServerError, "Error searching user database. Try again later.")
	ErrSearchTokens     = apperr.New(http.StatusInternalServerError, "Error searching token database. Try again later.")
	ErrUnverifiedUser   = apperr.NotFound("Unverified user not found.")
	ErrUserNotFound     = apperr.NotFound("User not found.")
	ErrTokenNotFound    = apperr.NotFound("Token not found.")
	ErrAuthenticated    = apperr.Conflict("This token has already been authenticated.")
	ErrNotAuthenticated = apperr.Unauthorized("This token has not been authenticated.")
	ErrExpended         = apperr.Conflict("This reset token has already been expended.")
	ErrUserNotVerified  = apperr.Unauthorized("This user is not yet verified.")
)

// UserStore is the part of the credential store the workflow needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	VerifyUser(ctx context.Context, verifyIDHash string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ResetTokenStore is the reset token store.
type ResetTokenStore interface {
	CreateResetToken(ctx context.Context, token *models.ResetToken) error
	GetResetToken(ctx context.Context, authenticateIDHash string) (*models.ResetToken, error)
	UpdateResetToken(ctx context.Context, token *models.ResetToken) error
	RedeemResetToken(ctx context.Context, authenticateIDHash string, user *models.User) error
	DeleteResetToken(ctx context.Context, authenticateIDHash string) error
}

// Notifier sends one email.
type Notifier interface {
	Send(ctx context.Context, msg email.Message) error
}

type Service struct {
	users        UserStore
	tokens       ResetTokenStore
	notifier     Notifier
	metrics      *metrics.Metrics
	verifyTTL    time.Duration
	emailTimeout time.Duration
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces the time source used for verification deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(users UserStore, tokens ResetTokenStore, notifier Notifier, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		users:        users,
		tokens:       tokens,
		notifier:     notifier,
		verifyTTL:    defaultVerifyTTL,
		emailTimeout: defaultEmailTimeout,
		now:          time.Now,
	}
	if cfg != nil {
		if cfg.Auth.VerifyTTL > 0 {
			s.verifyTTL = cfg.Auth.VerifyTTL
		}
		if cfg.SMTP.Timeout > 0 {
			s.emailTimeout = cfg.SMTP.Timeout
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams holds the submitted registration form.
type RegisterParams struct {
	ScreenName      string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register creates an unverified user and mails the verification link.
// When the email cannot be sent the user is removed again.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	if verrs := auth.ValidateRegistration(p.ScreenName, p.Email, p.Password, p.ConfirmPassword); verrs != nil {
		return nil, apperr.Validation("Failed to validate registration credentials.", verrs.Messages()...)
	}

	salt, hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return nil, ErrSaveUser.WithCause(err)
	}
	verifyID, verifyHash, err := email.GenerateToken()
	if err != nil {
		return nil, ErrSaveUser.WithCause(err)
	}

	user := &models.User{
		ScreenName:      p.ScreenName,
		Email:           p.Email,
		PassSalt:        salt,
		PassHash:        hash,
		VerifyIDHash:    verifyHash,
		VerifyExpiresAt: s.now().UTC().Add(s.verifyTTL),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			slog.Warn("register_failed", "screen_name", p.ScreenName, "reason", "duplicate", "column", dup.Column)
			return nil, duplicateError(dup.Column, p)
		}
		return nil, ErrSaveUser.WithCause(err)
	}

	err = s.send(ctx, email.Message{
		Kind:   email.KindAccountVerification,
		To:     user.Email,
		Params: email.Params{ScreenName: user.ScreenName, Token: verifyID},
	})
	if err != nil {
		if delErr := s.users.DeleteUser(context.WithoutCancel(ctx), user.ID); delErr != nil {
			slog.Error("register_rollback_failed", "user_id", user.ID, "error", delErr)
		}
		slog.Error("register_email_failed", "user_id", user.ID, "error", err)
		return nil, ErrSendEmail.WithCause(err)
	}

	slog.Info("register_success", "user_id", user.ID, "screen_name", user.ScreenName)
	s.metrics.AccountEvent("registered")
	return user, nil
}

func duplicateError(column string, p RegisterParams) *apperr.Error {
	switch column {
	case "screen_name":
		return apperr.Conflict(fmt.Sprintf("The screen name %q is already taken.", p.ScreenName))
	case "email":
		return apperr.Conflict(fmt.Sprintf("The email address %q is already registered.", p.Email))
	default:
		return apperr.Conflict("That account already exists.")
	}
}

// Verify marks the unverified user holding verifyID as verified.
func (s *Service) Verify(ctx context.Context, verifyID string) (*models.User, error) {
	user, err := s.users.VerifyUser(ctx, email.HashToken(verifyID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnverifiedUser
		}
		return nil, ErrSearchUsers.WithCause(err)
	}

	slog.Info("verify_success", "user_id", user.ID, "screen_name", user.ScreenName)
	s.metrics.AccountEvent("verified")
	return user, nil
}

// RequestPasswordReset issues a reset token for the account at address and
// mails its authenticate link. The token is deleted if the email fails.
func (s *Service) RequestPasswordReset(ctx context.Context, address string) error {
	user, err := s.users.GetUserByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return ErrSearchUsers.WithCause(err)
	}

	authenticateID, authenticateHash, err := email.GenerateToken()
	if err != nil {
		return ErrSaveToken.WithCause(err)
	}
	token := &models.ResetToken{
		AuthenticateIDHash: authenticateHash,
		Email:              user.Email,
	}
	if err := s.tokens.CreateResetToken(ctx, token); err != nil {
		return ErrSaveToken.WithCause(err)
	}

	err = s.send(ctx, email.Message{
		Kind:   email.KindPasswordResetRequested,
		To:     user.Email,
		Params: email.Params{ScreenName: user.ScreenName, Token: authenticateID},
	})
	if err != nil {
		if delErr := s.tokens.DeleteResetToken(context.WithoutCancel(ctx), authenticateHash); delErr != nil {
			slog.Error("reset_rollback_failed", "email", user.Email, "error", delErr)
		}
		slog.Error("reset_email_failed", "email", user.Email, "error", err)
		return ErrSendEmail.WithCause(err)
	}

	slog.Info("reset_requested", "user_id", user.ID)
	s.metrics.AccountEvent("reset_requested")
	return nil
}

// AuthenticateReset moves a live token from issued to authenticated.
func (s *Service) AuthenticateReset(ctx context.Context, authenticateID string) error {
	token, err := s.liveToken(ctx, authenticateID)
	if err != nil {
		return err
	}
	if token.Authenticated {
		return ErrAuthenticated
	}

	token.Authenticated = true
	if err := s.tokens.UpdateResetToken(ctx, token); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return ErrAuthenticated
		case errors.Is(err, repository.ErrNotFound):
			return ErrTokenNotFound
		default:
			return ErrSaveToken.WithCause(err)
		}
	}

	slog.Info("reset_authenticated", "email", token.Email)
	s.metrics.AccountEvent("reset_authenticated")
	return nil
}

// ChangePassword sets a new password for the owner of an authenticated,
// unexpended token. The password write and expending the token happen
// together, so a token changes the password at most once.
func (s *Service) ChangePassword(ctx context.Context, authenticateID, password, confirm string) error {
	if verrs := auth.ValidateNewPassword(password, confirm); verrs != nil {
		msgs := verrs.Messages()
		return apperr.Validation(msgs[0], msgs...)
	}

	token, err := s.liveToken(ctx, authenticateID)
	if err != nil {
		return err
	}
	if !token.Authenticated {
		return ErrNotAuthenticated
	}
	if token.Expended {
		return ErrExpended
	}

	user, err := s.users.GetUserByEmail(ctx, token.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return ErrSearchUsers.WithCause(err)
	}
	if !user.Verified {
		return ErrUserNotVerified
	}

	salt, hash, err := auth.HashPassword(password)
	if err != nil {
		return ErrSaveUser.WithCause(err)
	}
	user.PassSalt = salt
	user.PassHash = hash
	if err := s.tokens.RedeemResetToken(ctx, token.AuthenticateIDHash, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			slog.Warn("reset_token_reuse", "email", token.Email)
			return ErrExpended
		case errors.Is(err, repository.ErrNotFound):
			return ErrTokenNotFound
		default:
			return ErrSaveUser.WithCause(err)
		}
	}

	err = s.send(ctx, email.Message{
		Kind:   email.KindPasswordResetComplete,
		To:     user.Email,
		Params: email.Params{ScreenName: user.ScreenName},
	})
	if err != nil {
		slog.Warn("reset_complete_email_failed", "user_id", user.ID, "error", err)
	}

	slog.Info("password_changed", "user_id", user.ID)
	s.metrics.AccountEvent("password_changed")
	return nil
}

func (s *Service) liveToken(ctx context.Context, authenticateID string) (*models.ResetToken, error) {
	token, err := s.tokens.GetResetToken(ctx, email.HashToken(authenticateID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, ErrSearchTokens.WithCause(err)
	}
	return token, nil
}

func (s *Service) send(ctx context.Context, msg email.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.emailTimeout)
	defer cancel()
	return s.notifier.Send(ctx, msg)
}
