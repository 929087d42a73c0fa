package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/controllers"
)

type ServerController struct {
	version string
	driver  string
	started time.Time
}

func NewServerController(version, driver string) *ServerController {
	return &ServerController{version: version, driver: driver, started: time.Now()}
}

func (sc *ServerController) Health(c *fiber.Ctx) error {
	return controllers.Send(c, fiber.StatusOK, "ok", fiber.Map{
		"config_version": sc.version,
		"db_driver":      sc.driver,
		"uptime_seconds": int64(time.Since(sc.started).Seconds()),
	})
}
