// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// User is the context key for the user identified by the bearer token.
type User struct{}

// AuthError is the context key for the reason a presented bearer token was
// rejected.
type AuthError struct{}
