// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers translates HTTP requests into service calls and service
// results into JSON responses.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/votany/internal/services/account"
	"codeberg.org/oliverandrich/votany/internal/services/auth"
	"codeberg.org/oliverandrich/votany/internal/services/polls"
	"codeberg.org/oliverandrich/votany/internal/sse"
)

// DefaultHeartbeat is how often an idle event stream sends a comment.
const DefaultHeartbeat = 30 * time.Second

// Pinger checks that the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	db        Pinger
	accounts  *account.Service
	auth      *auth.Service
	polls     *polls.Service
	hub       *sse.Hub
	heartbeat time.Duration
}

// New creates a new Handlers instance.
func New(db Pinger, accounts *account.Service, authSvc *auth.Service, pollSvc *polls.Service, hub *sse.Hub) *Handlers {
	return &Handlers{
		db:        db,
		accounts:  accounts,
		auth:      authSvc,
		polls:     pollSvc,
		hub:       hub,
		heartbeat: DefaultHeartbeat,
	}
}

// SetHeartbeat changes the keep-alive interval of event streams.
func (h *Handlers) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// MessageResponse is the body of every operation that only reports success.
type MessageResponse struct {
	Message string `json:"message"`
}

// Health reports whether the service and its database are up.
func (h *Handlers) Health(c echo.Context) error {
	if h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
