package scheduler

import (
	"context"
	"time"

	"meterjob/internal/types"
)

// ScheduleStore reads metering schedules and advances them.
type ScheduleStore interface {
	// ListAll returns every schedule with its frequency name resolved.
	//
	// SQL: SELECT m.id, m.scheduler_name, f.frequency, m.start_date, m.next_run_time, ...
	//      FROM metered_plan_scheduler m
	//      JOIN subscriptions s ON s.id = m.subscription_id
	//      JOIN scheduler_frequency f ON f.id = m.frequency_id
	ListAll(ctx context.Context) ([]types.ScheduledTask, error)

	// UpdateNextRunTime writes the schedule's next emission time.
	//
	// SQL: UPDATE metered_plan_scheduler SET next_run_time = $2 WHERE id = $1
	UpdateNextRunTime(ctx context.Context, id int64, next time.Time) error
}

// AuditStore is the append-only metered audit log.
type AuditStore interface {
	// Append inserts rec and fills its ID and CreatedAt.
	Append(ctx context.Context, rec *types.MeteredAuditLog) error

	// ExistsForSchedule reports whether any audit row references the schedule.
	ExistsForSchedule(ctx context.Context, scheduleID int64) (bool, error)
}

// SubscriptionStore resolves the subscription a schedule bills against.
type SubscriptionStore interface {
	// GetByID returns a not_found_subscription AppError when no row matches.
	GetByID(ctx context.Context, id string) (*types.Subscription, error)
}
