package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/utils"
)

// RequestLog queues a sanitized entry for every request after the handler ran
func RequestLog(al *logger.AsyncLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()
		if err != nil {
			// let the error handler set the final status before logging
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}
		al.Log(utils.CreateSanitizedLogEntry(c, GetActor(c).ID, started))
		return nil
	}
}
