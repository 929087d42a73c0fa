package tracking

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/controllers"
	"github.com/jibzus/bluefleet-sub001/middleware"
	trackingModel "github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/services/tracking"
	trackingTypes "github.com/jibzus/bluefleet-sub001/types/tracking"
)

type TrackingController struct {
	poller *tracking.Poller
}

func NewTrackingController(poller *tracking.Poller) *TrackingController {
	return &TrackingController{poller: poller}
}

// Poll runs one tick; the scheduler receives the summary
func (tc *TrackingController) Poll(c *fiber.Ctx) error {
	summary, err := tc.poller.Run(c.UserContext())
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Tracking tick completed", summary)
}

func (tc *TrackingController) Events(c *fiber.Ctx) error {
	var q trackingTypes.EventsQuery
	if err := c.QueryParser(&q); err != nil {
		return controllers.BadRequest(c, "Invalid query parameters")
	}
	if err := q.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	events, err := tc.poller.Events(c.UserContext(), middleware.GetActor(c), c.Params("id"), q.ParsedDay())
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Tracking events retrieved", events)
}

func (tc *TrackingController) Latest(c *fiber.Ctx) error {
	ev, err := tc.poller.Latest(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Latest position retrieved", ev)
}

func (tc *TrackingController) Record(c *fiber.Ctx) error {
	var req trackingTypes.ManualPositionRequest
	if err := c.BodyParser(&req); err != nil {
		return controllers.BadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	pos := trackingModel.Position{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Metadata:  req.Metadata,
	}
	if req.RecordedAt != nil {
		pos.RecordedAt = *req.RecordedAt
	}

	ev, err := tc.poller.RecordManual(c.UserContext(), middleware.GetActor(c), c.Params("id"), pos)
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusCreated, "Position recorded", ev)
}
