package db

import (
	"context"
	"time"

	"meterjob/internal/types"
)

// ScheduleRepository reads metering schedules and advances their next run
// time. Schedules are created and edited by the portal; the job never inserts
// or deletes them.
type ScheduleRepository struct {
	db DBTX
}

func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const listSchedulesSQL = `SELECT m.id, m.scheduler_name, f.frequency, m.start_date, m.next_run_time,
       s.amp_subscription_id, COALESCE(s.name, ''), m.plan_id, m.dimension, m.quantity
FROM metered_plan_scheduler m
JOIN subscriptions s ON s.id = m.subscription_id
JOIN scheduler_frequency f ON f.id = m.frequency_id
ORDER BY m.id`

// ListAll returns every schedule regardless of frequency or due state.
func (r *ScheduleRepository) ListAll(ctx context.Context) ([]types.ScheduledTask, error) {
	rows, err := r.db.Query(ctx, listSchedulesSQL)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query schedules", err)
	}
	defer rows.Close()

	var tasks []types.ScheduledTask
	for rows.Next() {
		var (
			t    types.ScheduledTask
			freq string
		)
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&freq,
			&t.StartDate,
			&t.NextRunTime,
			&t.SubscriptionID,
			&t.SubscriptionName,
			&t.PlanID,
			&t.Dimension,
			&t.Quantity,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule", err)
		}
		t.Frequency, _ = types.ParseFrequency(freq)
		t.StartDate = t.StartDate.UTC()
		if t.NextRunTime != nil {
			utc := t.NextRunTime.UTC()
			t.NextRunTime = &utc
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating schedules", err)
	}
	return tasks, nil
}

// UpdateNextRunTime persists the next emission time of a schedule.
func (r *ScheduleRepository) UpdateNextRunTime(ctx context.Context, id int64, next time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE metered_plan_scheduler SET next_run_time = $2 WHERE id = $1`,
		id,
		next.UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update next run time", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	return nil
}
