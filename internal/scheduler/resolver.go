package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"meterjob/internal/external"
	"meterjob/internal/telemetry"
	"meterjob/internal/types"
)

// Audit payloads recorded when no lookup could be made.
const (
	lookupSubscriptionRequest  = "SubRepo.GetById"
	lookupSubscriptionResponse = "NULL TenantSubs"
	quantityRequest            = "QtyRequest"
	quantityResponse           = "New Qty was <=0"
)

// QuantityResolver determines the billable quantity of a schedule for one
// attempt by counting the enabled users in the purchaser's directory.
type QuantityResolver struct {
	subscriptions SubscriptionStore
	directory     external.DirectoryClient
	logger        *slog.Logger
}

func NewQuantityResolver(subscriptions SubscriptionStore, directory external.DirectoryClient, logger *slog.Logger) *QuantityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuantityResolver{
		subscriptions: subscriptions,
		directory:     directory,
		logger:        logger,
	}
}

// Resolve returns the quantity to bill, or a Skipped outcome when none can
// be billed. The schedule's stored quantity is never used. A non-nil error
// means the subscription store failed for a reason other than a missing row.
func (r *QuantityResolver) Resolve(ctx context.Context, task types.ScheduledTask) (float64, *types.Outcome, error) {
	sub, err := r.subscriptions.GetByID(ctx, task.SubscriptionID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSubscription {
			r.logger.WarnContext(ctx, "no subscription for schedule, needs investigation",
				"schedule_id", task.ID,
				"subscription_id", task.SubscriptionID,
				"subscription_name", task.SubscriptionName,
			)
			out := types.Skipped(types.SkipLookup, lookupSubscriptionRequest, lookupSubscriptionResponse)
			return 0, &out, nil
		}
		return 0, nil, err
	}

	count, err := r.directory.CountActivePrincipals(ctx, sub.PurchaserTenantID)
	if err != nil {
		request, response := err.Error(), ""
		var dirErr *types.DirectoryError
		if errors.As(err, &dirErr) {
			request, response = dirErr.Message, dirErr.RawBody
		}
		r.logger.WarnContext(ctx, "directory lookup failed",
			"schedule_id", task.ID,
			"tenant_id", sub.PurchaserTenantID,
			"error", err,
		)
		out := types.Skipped(types.SkipLookup, request, response)
		return 0, &out, nil
	}

	if count <= 0 {
		r.logger.InfoContext(ctx, "directory count was <= 0, skipping emission",
			"schedule_id", task.ID,
			"tenant_id", sub.PurchaserTenantID,
			"old_quantity", task.Quantity,
			"new_quantity", count,
			telemetry.AppLog,
		)
		out := types.Skipped(types.SkipQuantity, quantityRequest, quantityResponse)
		return 0, &out, nil
	}

	r.logger.InfoContext(ctx, "resolved metering quantity",
		"schedule_id", task.ID,
		"tenant_id", sub.PurchaserTenantID,
		"old_quantity", task.Quantity,
		"new_quantity", count,
	)
	return float64(count), nil, nil
}
