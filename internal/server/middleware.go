// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"codeberg.org/oliverandrich/votany/internal/config"
	"codeberg.org/oliverandrich/votany/internal/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, identifier middleware.Identifier) {
	e.Pre(middleware.StripTrailingSlash())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Secure())
	e.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Skipper: isEventStream,
	}))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.Server.MaxBodySize)))
	e.Use(middleware.Locale())
	e.Use(middleware.Identify(identifier))
}

// isEventStream skips compression for SSE routes, which must flush every event.
func isEventStream(c echo.Context) bool {
	return strings.HasSuffix(c.Request().URL.Path, "/events")
}

func bodyLimit(mb int) string {
	if mb <= 0 {
		mb = 1
	}
	return fmt.Sprintf("%dM", mb)
}
