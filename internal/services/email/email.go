// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/votany/internal/config"
	"codeberg.org/oliverandrich/votany/internal/i18n"
	"codeberg.org/oliverandrich/votany/internal/metrics"
)

// TokenLength is the number of random bytes for verify and authenticate ids.
const TokenLength = 32

// Kind selects the template of a message.
type Kind string

const (
	KindAccountVerification    Kind = "account-verification"
	KindPasswordResetRequested Kind = "password-reset-requested"
	KindPasswordResetComplete  Kind = "password-reset-complete"
)

// Params are the values a template can refer to. Token is the plaintext
// verify or authenticate id the link is built from.
type Params struct {
	ScreenName string
	Token      string
}

// Message is one email to one recipient.
type Message struct {
	Kind   Kind
	To     string
	Params Params
}

// Sender delivers a rendered email.
type Sender interface {
	Deliver(ctx context.Context, to, subject, body string) error
}

// Service renders localized emails and hands them to a Sender.
type Service struct {
	sender    Sender
	metrics   *metrics.Metrics
	site      config.SiteConfig
	baseURL   string
	verifyTTL time.Duration
	resetTTL  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithSender overrides the sender chosen from the SMTP configuration.
func WithSender(sender Sender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

// WithMetrics records every send attempt.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a new email service. Without an SMTP host mails are
// written to the log instead of being sent.
func NewService(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		site:      cfg.Site,
		baseURL:   strings.TrimSuffix(cfg.Server.BaseURL, "/"),
		verifyTTL: cfg.Auth.VerifyTTL,
		resetTTL:  cfg.Auth.ResetTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sender == nil {
		if cfg.SMTP.Host == "" {
			s.sender = LogSender{}
		} else {
			sender, err := NewSMTPSender(&cfg.SMTP)
			if err != nil {
				return nil, err
			}
			s.sender = sender
		}
	}

	return s, nil
}

// GenerateToken generates a new random token.
// Returns (plaintext token, SHA256 hash for storage, error).
func GenerateToken() (string, string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext := hex.EncodeToString(bytes)
	return plaintext, HashToken(plaintext), nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Send renders msg in the locale of ctx and delivers it.
func (s *Service) Send(ctx context.Context, msg Message) error {
	subject, body, err := s.Render(ctx, msg)
	if err == nil {
		err = s.sender.Deliver(ctx, msg.To, subject, body)
	}
	s.metrics.Email(string(msg.Kind), err)
	if err != nil {
		return fmt.Errorf("sending %s email: %w", msg.Kind, err)
	}
	return nil
}

// Render returns subject and plain text body of msg.
func (s *Service) Render(ctx context.Context, msg Message) (string, string, error) {
	data := map[string]any{
		"ScreenName": msg.Params.ScreenName,
		"SiteTitle":  s.site.Title,
		"SiteAuthor": s.site.Author,
	}

	var id string
	switch msg.Kind {
	case KindAccountVerification:
		id = "email_account_verification"
		data["URL"] = s.baseURL + "/api/user/verify/" + msg.Params.Token
		data["Minutes"] = int(s.verifyTTL.Minutes())
	case KindPasswordResetRequested:
		id = "email_password_reset_requested"
		data["URL"] = s.baseURL + "/api/user/authenticatePasswordReset/" + msg.Params.Token
		data["Minutes"] = int(s.resetTTL.Minutes())
	case KindPasswordResetComplete:
		id = "email_password_reset_complete"
	default:
		return "", "", fmt.Errorf("unknown email kind %q", msg.Kind)
	}

	return i18n.TData(ctx, id+"_subject", data), i18n.TData(ctx, id+"_body", data), nil
}
