package middleware

import (
	"context"
	"log/slog"
	"time"

	"newsadvance/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ContextMiddleware injects request ID, user ID and trace ID from Fiber locals
// into the request context so service-layer logs carry them.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(WithRequestValues(c, c.UserContext()))
		return c.Next()
	}
}

// WithRequestValues copies the logging locals of c into ctx. Auth handlers
// call it again once the user id is known.
func WithRequestValues(c *fiber.Ctx, ctx context.Context) context.Context {
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		ctx = context.WithValue(ctx, observability.RequestIDKey, rid)
		if observability.ExtractCorrelationID(ctx) == "" {
			ctx = observability.WithCorrelationID(ctx, rid)
		}
	}
	if uid, ok := c.Locals("userID").(uint); ok {
		ctx = context.WithValue(ctx, observability.UserIDKey, uid)
	}
	if tid, ok := c.Locals("traceID").(string); ok {
		ctx = context.WithValue(ctx, observability.TraceIDKey, tid)
	}
	return ctx
}

// StructuredLogger returns a Fiber middleware for logging requests using slog
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Get("User-Agent")),
		}

		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			observability.Logger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			observability.Logger.InfoContext(c.UserContext(), "request processed", fields...)
		}

		return err
	}
}
