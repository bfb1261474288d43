package db

import (
	"context"

	"meterjob/internal/types"
)

// ApplicationLogRepository writes operator-facing lines to application_log,
// the table the admin portal shows as its activity log.
type ApplicationLogRepository struct {
	db DBTX
}

func NewApplicationLogRepository(db DBTX) *ApplicationLogRepository {
	return &ApplicationLogRepository{db: db}
}

func (r *ApplicationLogRepository) Add(ctx context.Context, message string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO application_log (action_time, log_detail) VALUES (NOW(), $1)`,
		message,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write application log", err)
	}
	return nil
}
