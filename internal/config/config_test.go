// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name: "HTTP default port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 80},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost",
		},
		{
			name: "HTTP custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost:8080",
		},
		{
			name: "manual TLS default port",
			cfg: &Config{
				Server: ServerConfig{Host: "votany.example", Port: 443},
				TLS:    TLSConfig{Mode: "manual"},
			},
			expected: "https://votany.example",
		},
		{
			name: "manual TLS custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "votany.example", Port: 8443},
				TLS:    TLSConfig{Mode: "MANUAL"},
			},
			expected: "https://votany.example:8443",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestValidate(t *testing.T) {
	secret := strings.Repeat("s", 32)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Auth: AuthConfig{JWTSecret: secret}}, false},
		{"missing secret", Config{}, true},
		{"short secret", Config{Auth: AuthConfig{JWTSecret: "short"}}, true},
		{"manual tls without files", Config{Auth: AuthConfig{JWTSecret: secret}, TLS: TLSConfig{Mode: "manual"}}, true},
		{
			"manual tls with files",
			Config{Auth: AuthConfig{JWTSecret: secret}, TLS: TLSConfig{Mode: "manual", CertFile: "c.pem", KeyFile: "k.pem"}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFlags(t *testing.T) {
	flags := Flags()

	assert.NotEmpty(t, flags)

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"host", "port", "base-url", "log-level", "database-dsn", "tls-mode",
		"smtp-host", "jwt-secret", "verify-ttl", "reset-ttl", "reaper-interval", "metrics",
	} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.NotNil(t, cfg)
			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "text", cfg.Log.Format)
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
			assert.Equal(t, 48*time.Hour, cfg.Auth.TokenLifetime)
			assert.Equal(t, 10*time.Minute, cfg.Auth.VerifyTTL)
			assert.Equal(t, 10*time.Minute, cfg.Auth.ResetTTL)
			assert.Equal(t, 10*time.Second, cfg.SMTP.Timeout)
			assert.Equal(t, time.Minute, cfg.Reaper.Interval)
			assert.True(t, cfg.Metrics.Enabled)

			// From name falls back to the site author
			assert.Equal(t, "The Votany Team", cfg.SMTP.FromName)

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "https://votany.example", cfg.Server.BaseURL)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "./data/test.db", cfg.Database.DSN)
			assert.Equal(t, "mail.example.com", cfg.SMTP.Host)
			assert.Equal(t, 5*time.Minute, cfg.Auth.ResetTTL)

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--base-url", "https://votany.example",
		"--log-level", "debug",
		"--database-dsn", "./data/test.db",
		"--smtp-host", "mail.example.com",
		"--reset-ttl", "5m",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
