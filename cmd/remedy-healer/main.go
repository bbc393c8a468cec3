package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/remedyhq/remedy/pkg/cmd"
	"github.com/remedyhq/remedy/pkg/healing"
	"github.com/remedyhq/remedy/pkg/lease"
	"github.com/remedyhq/remedy/pkg/log"
	"github.com/remedyhq/remedy/pkg/otelhelper"
	"github.com/remedyhq/remedy/pkg/services"
	"github.com/remedyhq/remedy/pkg/validation"
)

func main() {
	command := &cli.Command{
		Name:                  "remedy-healer",
		EnableShellCompletion: true,
		Usage:                 "Start workers that heal failed workflow validations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for execution leases",
				Value:   "redis://localhost:6379",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "lease-ttl",
				Usage:   "Visibility timeout for execution leases",
				Value:   lease.DefaultTTL,
				Sources: cli.EnvVars("LEASE_TTL"),
			},
			&cli.StringFlag{
				Name:    "stats-schedule",
				Usage:   "Cron schedule for the healing stats report",
				Value:   "@every 15m",
				Sources: cli.EnvVars("STATS_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "healer-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("remedy-healer").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Remedy Healer")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "remedy-healer", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			leases, err := lease.NewManager(command.String("redis-url"), command.Duration("lease-ttl"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to connect to redis", "error", err)

				return err
			}
			defer func() {
				err := leases.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close lease manager", "error", err)
				}
			}()

			validator := validation.NewValidator()
			engine := healing.NewEngine(healing.NewRegistry(), validator, logger)
			service := services.NewHealing(persistence, validator, engine, eventBus, logger)

			healer := NewHealerManager(
				workerID,
				service,
				leases,
				eventBus,
				newTracer(ctx, logger),
				command.String("stats-schedule"),
				logger,
			)

			err = healer.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start healer", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func newTracer(ctx context.Context, logger *slog.Logger) trace.Tracer {
	tracer, err := otelhelper.NewTracer(ctx, "remedy-healer")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled, failed to create tracer", "error", err)

		return otel.Tracer("remedy-healer")
	}

	return tracer
}
