// Package handler serves the router over HTTP.
package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
)

// BaseHandler provides common dependencies for HTTP handlers.
type BaseHandler struct {
	logger *slog.Logger
}

// requestLogger scopes the logger to the route being served.
func (b BaseHandler) requestLogger(c fiber.Ctx) *slog.Logger {
	return b.logger.With("method", c.Method(), "path", c.Path())
}
