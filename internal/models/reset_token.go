// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ResetToken tracks one password reset request. It moves from issued to
// authenticated to expended and is void once its TTL has passed.
type ResetToken struct { //nolint:govet // fieldalignment: readability over optimization
	AuthenticateIDHash string    `json:"-"` // SHA256 hash
	Email              string    `json:"email"`
	Authenticated      bool      `json:"authenticated"`
	Expended           bool      `json:"expended"`
	IssuedAt           time.Time `json:"issuedAt"`
}

// Expired reports whether the token is older than ttl.
func (t *ResetToken) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(t.IssuedAt.Add(ttl))
}
