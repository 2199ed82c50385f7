// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is a registered account. VerifyIDHash and VerifyExpiresAt are only
// set while the account is unverified.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID              string    `json:"id"`
	ScreenName      string    `json:"screenName"`
	Email           string    `json:"email"`
	PassSalt        string    `json:"-"`
	PassHash        string    `json:"-"`
	Verified        bool      `json:"verified"`
	VerifyIDHash    string    `json:"-"`
	VerifyExpiresAt time.Time `json:"-"`
	RegisteredAt    time.Time `json:"registeredAt"`
	Following       []string  `json:"following"`
}

// VerificationExpired reports whether an unverified account is past its deadline.
func (u *User) VerificationExpired(now time.Time) bool {
	return !u.Verified && !now.Before(u.VerifyExpiresAt)
}
