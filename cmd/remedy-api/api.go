// Package main provides the Remedy API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/remedyhq/remedy/pkg/eventbus"
	"github.com/remedyhq/remedy/pkg/healing"
	"github.com/remedyhq/remedy/pkg/persistence"
	"github.com/remedyhq/remedy/pkg/services"
	"github.com/remedyhq/remedy/pkg/validation"
	"github.com/remedyhq/remedy/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	schemaGate  *validation.SchemaGate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) (*API, error) {
	schemaGate, err := validation.NewSchemaGate()
	if err != nil {
		return nil, err
	}

	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		schemaGate:  schemaGate,
	}, nil
}

func (a *API) App() *fiber.App {
	v := validation.NewValidator()
	engine := healing.NewEngine(healing.NewRegistry(), v, a.logger)
	healingService := services.NewHealing(a.persistence, v, engine, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(healingService, a.schemaGate, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Remedy API")
	})

	app.Post("/validate", handlers.ValidateWorkflow)

	e := app.Group("/executions")
	e.Post("/:id/heal", handlers.HealExecution)
	e.Get("/:id", handlers.GetExecution)

	app.Get("/stats", handlers.GetStats)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
