package booking

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/controllers"
	"github.com/jibzus/bluefleet-sub001/database"
	bookingModel "github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/middleware"
	"github.com/jibzus/bluefleet-sub001/services/negotiation"
	bookingTypes "github.com/jibzus/bluefleet-sub001/types/booking"
)

// BookingController handles negotiation requests
type BookingController struct {
	service *negotiation.Service
}

func NewBookingController(service *negotiation.Service) *BookingController {
	return &BookingController{service: service}
}

// Store proposes a new charter
func (bc *BookingController) Store(c *fiber.Ctx) error {
	var req bookingTypes.ProposeRequest
	if err := c.BodyParser(&req); err != nil {
		return controllers.BadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	b, err := bc.service.Propose(c.UserContext(), middleware.GetActor(c), negotiation.ProposeInput{
		VesselID: req.VesselID,
		Window:   bookingModel.Window{StartAt: req.StartAt, EndAt: req.EndAt},
		Terms: bookingModel.Terms{
			Purpose: req.Terms.Purpose,
			Clauses: req.Terms.Clauses,
			Crew:    req.Terms.Crew,
			Cargo:   req.Terms.Cargo,
			Route:   req.Terms.Route,
		},
		PriceMinor: req.PriceMinor,
		Currency:   req.Currency,
	})
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusCreated, "Booking requested", b)
}

func (bc *BookingController) Index(c *fiber.Ctx) error {
	var q bookingTypes.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return controllers.BadRequest(c, "Invalid query parameters")
	}
	if err := q.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	bookings, err := bc.service.List(c.UserContext(), middleware.GetActor(c), database.BookingFilter{
		VesselID: q.VesselID,
		Status:   bookingModel.BookingStatus(q.Status),
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return controllers.Fail(c, err)
	}
	if bookings == nil {
		bookings = []bookingModel.Booking{}
	}
	return controllers.Send(c, fiber.StatusOK, "Bookings retrieved", bookings)
}

func (bc *BookingController) Show(c *fiber.Ctx) error {
	b, err := bc.service.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Booking retrieved", b)
}

func (bc *BookingController) History(c *fiber.Ctx) error {
	events, err := bc.service.History(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Booking history retrieved", events)
}

func (bc *BookingController) Counter(c *fiber.Ctx) error {
	var req bookingTypes.CounterRequest
	if err := c.BodyParser(&req); err != nil {
		return controllers.BadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	in := negotiation.CounterInput{
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		PriceMinor: req.PriceMinor,
		Currency:   req.Currency,
	}
	if req.Terms != nil {
		in.Terms = &negotiation.TermsPatch{
			Purpose: req.Terms.Purpose,
			Clauses: req.Terms.Clauses,
			Crew:    req.Terms.Crew,
			Cargo:   req.Terms.Cargo,
			Route:   req.Terms.Route,
		}
	}

	b, err := bc.service.Counter(c.UserContext(), middleware.GetActor(c), c.Params("id"), in)
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Counter proposal recorded", b)
}

func (bc *BookingController) Accept(c *fiber.Ctx) error {
	b, contract, err := bc.service.Accept(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Booking accepted", fiber.Map{
		"booking":  b,
		"contract": contract,
	})
}

func (bc *BookingController) Cancel(c *fiber.Ctx) error {
	b, err := bc.service.Cancel(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Booking cancelled", b)
}
