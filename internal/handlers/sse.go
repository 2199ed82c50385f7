// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/votany/internal/sse"
)

// PollEvents streams the tally of one poll as Server-Sent Events. The
// current tally is sent first, then one "tally" event per change.
func (h *Handlers) PollEvents(c echo.Context) error {
	ctx := c.Request().Context()
	pollID := c.Param("pollId")

	tally, err := h.polls.Tally(ctx, pollID)
	if err != nil {
		return err
	}
	initial, err := sse.FormatJSONEvent("tally", tally)
	if err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	ch := h.hub.Subscribe(pollID)
	defer h.hub.Unsubscribe(pollID, ch)

	if _, err := w.Write([]byte(initial)); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				slog.Debug("sse_write_failed", "poll_id", pollID, "error", err)
				return nil
			}
			w.Flush()
		}
	}
}
