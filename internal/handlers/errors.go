// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/votany/internal/apperr"
)

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	Error *apperr.Error `json:"error"`
}

// ErrBadBody is returned when a request body cannot be decoded.
var ErrBadBody = apperr.Validation("The request body could not be read.")

// HTTPErrorHandler renders errors as {"error": {status, message, details}}.
// Causes of server errors are logged, never sent.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", appErr.Status,
			"error", err,
		)
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(appErr.Status)
	} else {
		sendErr = c.JSON(appErr.Status, ErrorResponse{Error: appErr})
	}
	if sendErr != nil {
		slog.Error("error_response_failed", "error", sendErr)
	}
}

func toAppError(err error) *apperr.Error {
	if appErr, ok := apperr.As(err); ok {
		return appErr
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		}
		if he.Code >= http.StatusInternalServerError {
			return &apperr.Error{Status: he.Code, Message: message, Err: err}
		}
		return apperr.New(he.Code, message)
	}

	return apperr.Internal("Internal server error.", fmt.Errorf("unhandled: %w", err))
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return ErrBadBody.WithCause(err)
	}
	return nil
}
