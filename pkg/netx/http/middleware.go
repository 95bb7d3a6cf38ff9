package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kestrelhq/nlsql/pkg/mlog"
)

const correlationIDHeader = "X-Request-Id"

// WithCorrelationID assigns (or propagates) a correlation id per request and
// stores it in both fiber.Locals and the user context for downstream logging.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(correlationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(correlationIDHeader, id)
		c.Locals("correlation_id", id)

		return c.Next()
	}
}

// WithLogging logs method/path/status/duration for every request and
// attaches a request-scoped Logger (with correlation id) to the user context.
func WithLogging(base mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		correlationID, _ := c.Locals("correlation_id").(string)
		reqLogger := base.WithFields("correlation_id", correlationID, "path", c.Path())

		ctx := mlog.WithContext(c.UserContext(), reqLogger)
		c.SetUserContext(ctx)

		err := c.Next()

		reqLogger.Infof("%s %s -> %d (%s)", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))

		return err
	}
}
