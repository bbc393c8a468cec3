package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/remedyhq/remedy/pkg/eventbus"
	"github.com/remedyhq/remedy/pkg/events"
	"github.com/remedyhq/remedy/pkg/lease"
	"github.com/remedyhq/remedy/pkg/otelhelper"
	"github.com/remedyhq/remedy/pkg/services"
)

const statsWindow = 24 * time.Hour

// HealerManager consumes healing.requested jobs and runs them through the
// healing service under an execution lease, so each execution is healed by
// exactly one worker at a time.
type HealerManager struct {
	id            string
	logger        *slog.Logger
	service       *services.Healing
	leases        *lease.Manager
	eventBus      eventbus.EventBus
	tracer        trace.Tracer
	statsSchedule string
	cron          *cron.Cron
}

func NewHealerManager(
	id string,
	service *services.Healing,
	leases *lease.Manager,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	statsSchedule string,
	logger *slog.Logger,
) *HealerManager {
	return &HealerManager{
		id:            id,
		logger:        logger.With("module", "remedy-healer", "worker_id", id),
		service:       service,
		leases:        leases,
		eventBus:      eventBus,
		tracer:        tracer,
		statsSchedule: statsSchedule,
		cron:          cron.New(),
	}
}

func (h *HealerManager) Start(ctx context.Context) error {
	h.logger.InfoContext(ctx, "Starting healer manager", "worker_id", h.id)

	err := h.eventBus.Handle(events.HealingRequestedEvent, h.handleHealingRequested)
	if err != nil {
		return err
	}

	err = h.eventBus.Subscribe(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if h.statsSchedule != "" {
		_, err = h.cron.AddFunc(h.statsSchedule, func() { h.reportStats(ctx) })
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to schedule stats report", "error", err)

			return err
		}

		h.cron.Start()
	}

	h.logger.InfoContext(ctx, "Healer started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	h.logger.InfoContext(ctx, "Shutting down healer...")

	<-h.cron.Stop().Done()

	return nil
}

func (h *HealerManager) handleHealingRequested(ctx context.Context, event any) error {
	requestedEvent, ok := event.(*events.HealingRequested)
	if !ok {
		h.logger.ErrorContext(ctx, "Invalid event type for HealingRequested")

		return nil
	}

	executionID := requestedEvent.ExecutionID

	logger := h.logger.With(
		"execution_id", executionID,
		"event_id", requestedEvent.ID,
	)

	traceCtx, span := otelhelper.StartSpan(ctx, h.tracer, "healer.heal",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.WorkerIDKey, h.id),
		attribute.String(otelhelper.EventIDKey, requestedEvent.ID),
	)
	defer span.End()

	acquired, err := h.leases.Acquire(traceCtx, executionID, h.id)
	if err != nil {
		logger.ErrorContext(traceCtx, "Failed to acquire execution lease", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	if !acquired {
		// Another worker owns this execution; its lease TTL makes the job
		// visible again if that worker dies.
		logger.InfoContext(traceCtx, "Execution already leased, skipping")

		return nil
	}

	defer func() {
		releaseErr := h.leases.Release(context.WithoutCancel(traceCtx), executionID, h.id)
		if releaseErr != nil {
			logger.ErrorContext(traceCtx, "Failed to release execution lease", "error", releaseErr)
		}
	}()

	logger.InfoContext(traceCtx, "Processing healing request",
		"layer", requestedEvent.Layer,
		"error_count", len(requestedEvent.Errors))

	result, err := h.service.ProcessHealing(traceCtx, h.id, executionID)
	if err != nil {
		if services.IsNotFoundError(err) {
			// Nothing to retry against; drop the job.
			logger.WarnContext(traceCtx, "Execution record not found, dropping job")

			return nil
		}

		logger.ErrorContext(traceCtx, "Failed to process healing job", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	logger.InfoContext(traceCtx, "Healing job finished",
		"success", result.Success,
		"healed", result.Healed,
		"applied_fixes", len(result.AppliedFixes),
		"remaining_errors", len(result.RemainingErrors),
		"confidence", result.Confidence)

	return nil
}

func (h *HealerManager) reportStats(ctx context.Context) {
	stats, err := h.service.Stats(ctx, time.Now().Add(-statsWindow))
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to collect healing stats", "error", err)

		return
	}

	h.logger.InfoContext(ctx, "Healing stats",
		"attempts", stats.Attempts,
		"successes", stats.Successes,
		"success_rate", stats.SuccessRate,
		"common_errors", stats.CommonErrors)
}
