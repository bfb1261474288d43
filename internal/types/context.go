package types

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	scheduleIDKey contextKey = "schedule_id"
)

// WithRunID stores the evaluation pass identifier in the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the evaluation pass identifier from the context.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithScheduleID stores the schedule currently being processed.
func WithScheduleID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, scheduleIDKey, id)
}

// GetScheduleID retrieves the schedule being processed, if any.
func GetScheduleID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(scheduleIDKey).(int64)
	return id, ok
}
