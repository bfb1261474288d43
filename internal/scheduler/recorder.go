package scheduler

import (
	"context"
	"time"

	"meterjob/internal/types"
)

// AuditRecorder writes one audit row per terminal outcome.
type AuditRecorder struct {
	store AuditStore
}

func NewAuditRecorder(store AuditStore) *AuditRecorder {
	return &AuditRecorder{store: store}
}

// Record appends the audit row for outcome and returns it with its ID and
// creation time filled in. usageDate is stored as the subscription usage
// date.
func (r *AuditRecorder) Record(ctx context.Context, task types.ScheduledTask, outcome types.Outcome, usageDate time.Time) (types.MeteredAuditLog, error) {
	rec := types.MeteredAuditLog{
		ScheduleID:            task.ID,
		SubscriptionID:        task.SubscriptionID,
		RequestJSON:           outcome.RequestJSON,
		ResponseJSON:          outcome.ResponseJSON,
		StatusCode:            outcome.Status(),
		RunBy:                 task.RunBy(),
		SubscriptionUsageDate: usageDate.UTC(),
	}
	err := r.store.Append(ctx, &rec)
	return rec, err
}
