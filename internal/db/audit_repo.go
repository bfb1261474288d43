package db

import (
	"context"

	"meterjob/internal/types"
)

// AuditLogRepository appends to metered_audit_logs. Rows are never updated.
type AuditLogRepository struct {
	db DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append inserts the record and fills in its ID and CreatedAt.
func (r *AuditLogRepository) Append(ctx context.Context, rec *types.MeteredAuditLog) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO metered_audit_logs
		 (scheduler_id, subscription_id, request_json, response_json, status_code, run_by, subscription_usage_date, created_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING id, created_date`,
		rec.ScheduleID,
		rec.SubscriptionID,
		rec.RequestJSON,
		rec.ResponseJSON,
		rec.StatusCode,
		rec.RunBy,
		rec.SubscriptionUsageDate,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append metered audit log", err)
	}
	return nil
}

// ExistsForSchedule reports whether any audit row, of any status, was ever
// written for the schedule.
func (r *AuditLogRepository) ExistsForSchedule(ctx context.Context, scheduleID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM metered_audit_logs WHERE scheduler_id = $1)`,
		scheduleID,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check audit history", err)
	}
	return exists, nil
}
