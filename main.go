package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jibzus/bluefleet-sub001/broker"
	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/database/memstore"
	"github.com/jibzus/bluefleet-sub001/database/seeders"
	"github.com/jibzus/bluefleet-sub001/httpServices/ais"
	"github.com/jibzus/bluefleet-sub001/httpServices/documents"
	"github.com/jibzus/bluefleet-sub001/httpServices/sso"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/middleware"
	"github.com/jibzus/bluefleet-sub001/obs"
	"github.com/jibzus/bluefleet-sub001/routes"
	"github.com/jibzus/bluefleet-sub001/services/signature"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration: " + err.Error())
	}
	if err := logger.Setup("log/app"); err != nil {
		logger.Error("Could not set up file logging", err)
	}

	shutdownTracer, err := obs.InitTracer(cfg.Telemetry.ServiceName, cfg.Version, cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Error("Failed to initialise tracing", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to the database: " + err.Error())
	}

	var publisher broker.Publisher = broker.Noop{}
	if cfg.Broker.URL != "" {
		amqpPublisher, err := broker.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.Fatal("Failed to connect to the message broker: " + err.Error())
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		logger.Warning("BROKER_URL not set, lifecycle events are not published")
	}

	var docs signature.DocumentStore
	if cfg.Documents.BaseURL != "" {
		docs = documents.NewClient(cfg.Documents.BaseURL, cfg.Documents.Token, cfg.Documents.Timeout)
	} else {
		logger.Warning("DOCUMENTS_BASE_URL not set, signatures are stored under " + cfg.Documents.LocalDir)
		docs = documents.NewLocalStore(cfg.Documents.LocalDir)
	}

	var directory middleware.UserDirectory
	if cfg.SSO.BaseURL != "" {
		directory = sso.NewClient(cfg.SSO.BaseURL)
	}

	asyncLogger := logger.NewAsyncLogger(store, 100)
	go asyncLogger.ProcessLog()

	app := fiber.New(fiber.Config{
		ReadBufferSize:  32768,
		WriteBufferSize: 32768,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		BodyLimit:       cfg.Server.BodyLimit,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.FrontendURL,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.Server.FrontendURL != "*",
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		Config:    cfg,
		Store:     store,
		Publisher: publisher,
		Documents: docs,
		Positions: ais.NewClient(cfg.AIS.BaseURL, cfg.AIS.APIKey, cfg.AIS.Timeout),
		Directory: directory,
		Logger:    asyncLogger,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	logger.Success("Server is running on " + cfg.Server.Address() + " (config " + cfg.Version + ", db " + cfg.Database.Driver + ")")
	if err := app.Listen(cfg.Server.Address()); err != nil {
		logger.Error("Server stopped", err)
	}

	asyncLogger.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracer(ctx); err != nil {
		logger.Error("Failed to flush traces", err)
	}
}

// openStore picks Postgres or the in-memory store and seeds demo vessels when asked
func openStore(cfg *config.Config) (database.Repository, error) {
	var store database.Repository
	seed := cfg.Database.Seed

	switch cfg.Database.Driver {
	case "memory":
		logger.Warning("Using the in-memory store, data is lost on restart")
		store = memstore.New()
		seed = true
	default:
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		store = database.NewStore(db)
	}

	if seed {
		seeders.SeedVessels(context.Background(), store, time.Now())
	}
	return store, nil
}
