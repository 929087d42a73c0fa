package escrow

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/controllers"
	"github.com/jibzus/bluefleet-sub001/middleware"
	"github.com/jibzus/bluefleet-sub001/services/escrow"
	escrowTypes "github.com/jibzus/bluefleet-sub001/types/escrow"
)

type EscrowController struct {
	service *escrow.Service
}

func NewEscrowController(service *escrow.Service) *EscrowController {
	return &EscrowController{service: service}
}

func (ec *EscrowController) Show(c *fiber.Ctx) error {
	e, err := ec.service.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Escrow retrieved", e)
}

func (ec *EscrowController) ShowByBooking(c *fiber.Ctx) error {
	e, err := ec.service.GetByBooking(c.UserContext(), middleware.GetActor(c), c.Params("bookingId"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Escrow retrieved", e)
}

func (ec *EscrowController) Release(c *fiber.Ctx) error {
	var req escrowTypes.ReleaseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return controllers.BadRequest(c, "Invalid request body")
		}
	}
	if err := req.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	e, err := ec.service.Release(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Reason)
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Escrow released", e)
}

func (ec *EscrowController) Dispute(c *fiber.Ctx) error {
	var req escrowTypes.DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return controllers.BadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	e, err := ec.service.Dispute(c.UserContext(), middleware.GetActor(c), c.Params("id"), req.Reason)
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Dispute recorded", e)
}
