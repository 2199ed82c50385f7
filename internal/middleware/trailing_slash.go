// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// StripTrailingSlash routes "/api/poll/" like "/api/poll". The path is
// rewritten in place instead of redirected so request bodies survive. Use
// it with Echo#Pre.
func StripTrailingSlash() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if path := req.URL.Path; path != "/" && strings.HasSuffix(path, "/") {
				req.URL.Path = strings.TrimRight(path, "/")
				if req.URL.Path == "" {
					req.URL.Path = "/"
				}
				req.URL.RawPath = ""
				req.RequestURI = req.URL.RequestURI()
			}
			return next(c)
		}
	}
}
