// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"codeberg.org/oliverandrich/votany/internal/config"
)

// TLSMode represents the resolved TLS mode.
type TLSMode string

const (
	TLSModeOff    TLSMode = "off"
	TLSModeManual TLSMode = "manual"
)

// SetupTLS returns the TLS configuration for the server, or nil when TLS
// is off. Unknown modes are rejected.
func SetupTLS(cfg *config.Config) (TLSMode, *tls.Config, error) {
	switch mode := TLSMode(strings.ToLower(cfg.TLS.Mode)); mode {
	case TLSModeOff, "":
		slog.Info("TLS mode: off")
		return TLSModeOff, nil, nil

	case TLSModeManual:
		slog.Info("TLS mode: manual",
			"cert", cfg.TLS.CertFile,
			"key", cfg.TLS.KeyFile,
		)
		tlsConfig, err := setupManual(cfg)
		return TLSModeManual, tlsConfig, err

	default:
		return "", nil, fmt.Errorf("unknown TLS mode: %s", mode)
	}
}

// setupManual loads the certificate pair named in the config.
func setupManual(cfg *config.Config) (*tls.Config, error) {
	certFile, keyFile := cfg.TLS.CertFile, cfg.TLS.KeyFile
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("manual TLS mode requires both cert-file and key-file")
	}
	for _, f := range []string{certFile, keyFile} {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("certificate file not found: %w", err)
		}
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	logCertificate(&cert)
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// logCertificate logs the SHA256 fingerprint and expiry of the leaf
// certificate, warning when it has less than a week left.
func logCertificate(cert *tls.Certificate) {
	if len(cert.Certificate) == 0 {
		return
	}
	sum := sha256.Sum256(cert.Certificate[0])
	fingerprint := strings.ToUpper(hex.EncodeToString(sum[:]))

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		slog.Warn("tls_certificate_unreadable", "sha256", fingerprint, "error", err)
		return
	}

	left := time.Until(leaf.NotAfter)
	attrs := []any{"sha256", fingerprint, "subject", leaf.Subject.CommonName, "not_after", leaf.NotAfter}
	if left < 7*24*time.Hour {
		slog.Warn("tls_certificate_expiring", attrs...)
		return
	}
	slog.Info("tls_certificate", attrs...)
}
