package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Aleph-Alpha/screensim/pkg/requestid"
)

// requestID resolves the correlation id from the X-Request-ID header,
// echoes it on the response and stores it in the request context.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := requestid.Resolve(c.Get(requestid.Header))
		c.Set(requestid.Header, id)
		c.SetUserContext(requestid.NewContext(c.UserContext(), id))
		return c.Next()
	}
}

// Propagator restores a remote trace context from carrier headers. It is
// satisfied by *tracer.Tracer.
type Propagator interface {
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}

// traceContext continues the caller's trace when the request carries W3C
// trace headers.
func traceContext(p Propagator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		carrier := make(map[string]string, 3)
		for _, key := range []string{"traceparent", "tracestate", "baggage"} {
			if v := c.Get(key); v != "" {
				carrier[key] = v
			}
		}
		if len(carrier) > 0 {
			c.SetUserContext(p.SetCarrierOnContext(c.UserContext(), carrier))
		}
		return c.Next()
	}
}

// accessLog writes one line per request once the handler chain returned.
func accessLog(logger Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the error handler pick the status before logging it.
			if hErr := c.App().ErrorHandler(c, err); hErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		logger.InfoWithContext(c.UserContext(), "request completed", nil, map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}
}
