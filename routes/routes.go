package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/broker"
	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/constants"
	bookingController "github.com/jibzus/bluefleet-sub001/controllers/booking"
	contractController "github.com/jibzus/bluefleet-sub001/controllers/contract"
	escrowController "github.com/jibzus/bluefleet-sub001/controllers/escrow"
	"github.com/jibzus/bluefleet-sub001/controllers/server"
	trackingController "github.com/jibzus/bluefleet-sub001/controllers/tracking"
	webhookController "github.com/jibzus/bluefleet-sub001/controllers/webhook"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/middleware"
	"github.com/jibzus/bluefleet-sub001/services/escrow"
	"github.com/jibzus/bluefleet-sub001/services/negotiation"
	"github.com/jibzus/bluefleet-sub001/services/signature"
	"github.com/jibzus/bluefleet-sub001/services/tracking"
	"github.com/jibzus/bluefleet-sub001/services/webhook"
)

// Dependencies are the collaborators chosen at startup
type Dependencies struct {
	Config    *config.Config
	Store     database.Repository
	Publisher broker.Publisher
	Documents signature.DocumentStore
	Positions tracking.PositionSource
	Directory middleware.UserDirectory
	// Logger is optional; without it requests are not persisted
	Logger *logger.AsyncLogger
}

// Services exposes the wired components, mainly so tests can pin their clocks
type Services struct {
	Negotiation *negotiation.Service
	Signature   *signature.Service
	Escrow      *escrow.Service
	Webhooks    *webhook.Gateway
	Tracking    *tracking.Poller
}

func SetupRoutes(app *fiber.App, deps Dependencies) *Services {
	cfg := deps.Config

	svc := &Services{
		Negotiation: negotiation.NewService(deps.Store, cfg, deps.Publisher),
		Signature:   signature.NewService(deps.Store, deps.Documents, cfg, deps.Publisher),
		Escrow:      escrow.NewService(deps.Store, deps.Publisher),
		Tracking:    tracking.NewPoller(deps.Store, deps.Positions, cfg.Tracking),
	}
	svc.Webhooks = webhook.NewGateway(svc.Escrow, deps.Store,
		webhook.NewPaystack(cfg.Webhook.PaystackSecret),
		webhook.NewFlutterwave(cfg.Webhook.FlutterwaveSecretHash),
	)

	auth := middleware.NewAuthenticator(cfg.Auth, deps.Directory)
	serverController := server.NewServerController(cfg.Version, cfg.Database.Driver)
	bookings := bookingController.NewBookingController(svc.Negotiation)
	contracts := contractController.NewContractController(svc.Signature)
	escrows := escrowController.NewEscrowController(svc.Escrow)
	webhooks := webhookController.NewWebhookController(svc.Webhooks, cfg.Webhook.MaxBodyBytes)
	positions := trackingController.NewTrackingController(svc.Tracking)

	if deps.Logger != nil {
		app.Use(middleware.RequestLog(deps.Logger))
	}

	/*=============================================================================
	| Public Routes
	===============================================================================*/
	app.Get("/health", serverController.Health)

	api := app.Group("/api")
	api.Post("/webhooks/payments", webhooks.Receive)

	party := auth.RequirePermissions(constants.PartyPermissions...)

	/*=============================================================================
	| Booking Routes
	===============================================================================*/
	bookingGroup := api.Group("/bookings")
	bookingGroup.Post("/", auth.RequirePermissions(constants.PermOperatorFull), bookings.Store)
	bookingGroup.Get("/", party, bookings.Index)
	bookingGroup.Get("/:id", party, bookings.Show)
	bookingGroup.Get("/:id/history", party, bookings.History)
	bookingGroup.Post("/:id/counter", party, bookings.Counter)
	bookingGroup.Post("/:id/accept", party, bookings.Accept)
	bookingGroup.Post("/:id/cancel", party, bookings.Cancel)

	/*=============================================================================
	| Contract Routes
	===============================================================================*/
	contractGroup := api.Group("/contracts")
	contractGroup.Get("/booking/:bookingId", party, contracts.ShowByBooking)
	contractGroup.Get("/:id", party, contracts.Show)
	contractGroup.Post("/:id/sign", auth.RequirePermissions(
		constants.PermOwnerFull,
		constants.PermOperatorFull,
	), contracts.Sign)
	contractGroup.Post("/:id/signatures/:signerId/verify", party, contracts.Verify)

	/*=============================================================================
	| Escrow Routes
	===============================================================================*/
	escrowGroup := api.Group("/escrows")
	escrowGroup.Get("/booking/:bookingId", party, escrows.ShowByBooking)
	escrowGroup.Get("/:id", party, escrows.Show)
	escrowGroup.Post("/:id/release", party, escrows.Release)
	escrowGroup.Post("/:id/dispute", party, escrows.Dispute)

	/*=============================================================================
	| Tracking Routes
	===============================================================================*/
	trackingGroup := api.Group("/tracking/bookings")
	trackingGroup.Get("/:id/events", party, positions.Events)
	trackingGroup.Get("/:id/latest", party, positions.Latest)
	trackingGroup.Post("/:id/events", auth.RequirePermissions(constants.AdminPermissions...), positions.Record)

	/*=============================================================================
	| Internal Routes
	===============================================================================*/
	internal := api.Group("/internal", middleware.RequireSchedulerSecret(cfg.Auth.SchedulerSecret))
	internal.Post("/tracking/poll", positions.Poll)

	return svc
}
