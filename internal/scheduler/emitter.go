package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"meterjob/internal/external"
	"meterjob/internal/telemetry"
	"meterjob/internal/types"
)

// BillingEmitter submits exactly one usage event per call and turns the
// billing API's answer into an Outcome.
type BillingEmitter struct {
	billing external.BillingClient
	logger  *slog.Logger
}

func NewBillingEmitter(billing external.BillingClient, logger *slog.Logger) *BillingEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingEmitter{billing: billing, logger: logger}
}

// Emit bills quantity units of the schedule's dimension, effective at now.
// It never retries; the returned Outcome is Accepted, Rejected or Failed.
func (e *BillingEmitter) Emit(ctx context.Context, task types.ScheduledTask, quantity float64, now time.Time) types.Outcome {
	usage := types.UsageRequest{
		ResourceID:         task.SubscriptionID,
		Quantity:           quantity,
		Dimension:          task.Dimension,
		EffectiveStartTime: now.UTC(),
		PlanID:             task.PlanID,
	}
	request := mustJSON(usage)

	e.logger.InfoContext(ctx, "submitting usage event",
		"schedule_id", task.ID,
		"request", request,
		telemetry.AppLog,
	)

	result, err := e.billing.SubmitUsage(ctx, usage)
	if err != nil {
		var rej *types.BillingRejection
		if errors.As(err, &rej) {
			response := rej.RawBody
			if response == "" {
				response = mustJSON(rej.Message)
			}
			e.logger.WarnContext(ctx, "usage event rejected",
				"schedule_id", task.ID,
				"code", rej.Code,
				"response", response,
				telemetry.AppLog,
			)
			return types.Rejected(rej.Code, request, response)
		}

		e.logger.ErrorContext(ctx, "usage event submission failed",
			"schedule_id", task.ID,
			"error", err,
			telemetry.AppLog,
		)
		return types.Failed(request, mustJSON(errorDetail(err)))
	}

	response := mustJSON(result)
	e.logger.InfoContext(ctx, "usage event answered",
		"schedule_id", task.ID,
		"status", result.Status,
		"response", response,
		telemetry.AppLog,
	)
	if result.Status != types.StatusAccepted {
		return types.Rejected(result.Status, request, response)
	}
	return types.Accepted(request, response)
}

// errorDetail includes the direct cause, which AppError.Error omits.
func errorDetail(err error) string {
	detail := err.Error()
	if cause := errors.Unwrap(err); cause != nil {
		detail += ": " + cause.Error()
	}
	return detail
}

// mustJSON encodes v, which is always a plain struct or string here.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
