// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apperr carries the status, user-facing message and detail list
// of a failed request from the services to the HTTP error handler.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a failure that can be shown to the client. Err holds the
// internal cause and is only logged.
type Error struct {
	Err     error    `json:"-"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Status  int      `json:"status"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCause returns a copy of e that wraps err.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func New(status int, message string, details ...string) *Error {
	return &Error{Status: status, Message: message, Details: details}
}

func Validation(message string, details ...string) *Error {
	return New(http.StatusBadRequest, message, details...)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

// Internal wraps an unexpected failure. Only message reaches the client.
func Internal(message string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status of err, 500 for anything unknown.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
