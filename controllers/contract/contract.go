package contract

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/controllers"
	contractModel "github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/middleware"
	"github.com/jibzus/bluefleet-sub001/services/signature"
	contractTypes "github.com/jibzus/bluefleet-sub001/types/contract"
)

type ContractController struct {
	service *signature.Service
}

func NewContractController(service *signature.Service) *ContractController {
	return &ContractController{service: service}
}

func (cc *ContractController) Show(c *fiber.Ctx) error {
	contract, err := cc.service.Get(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Contract retrieved", contract)
}

func (cc *ContractController) ShowByBooking(c *fiber.Ctx) error {
	contract, err := cc.service.GetByBooking(c.UserContext(), middleware.GetActor(c), c.Params("bookingId"))
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Contract retrieved", contract)
}

// Sign records the caller's signature; the response reports whether the contract is now executed
func (cc *ContractController) Sign(c *fiber.Ctx) error {
	var req contractTypes.SignRequest
	if err := c.BodyParser(&req); err != nil {
		return controllers.BadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}
	blob, err := req.Blob()
	if err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	contract, err := cc.service.Sign(c.UserContext(), middleware.GetActor(c), c.Params("id"), signature.SignInput{
		AssertedRole: contractModel.SignerRole(req.Role),
		Blob:         blob,
		ContentType:  req.ContentType,
	})
	if err != nil {
		return controllers.Fail(c, err)
	}

	message := "Signature recorded"
	if contract.IsExecuted() {
		message = "Contract fully signed"
	}
	return controllers.Send(c, fiber.StatusOK, message, contract)
}

func (cc *ContractController) Verify(c *fiber.Ctx) error {
	var req contractTypes.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return controllers.BadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return controllers.BadRequest(c, err.Error())
	}
	blob, err := req.Blob()
	if err != nil {
		return controllers.BadRequest(c, err.Error())
	}

	v, err := cc.service.VerifySignature(c.UserContext(), middleware.GetActor(c), c.Params("id"), c.Params("signerId"), blob)
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Signature verified", v)
}
