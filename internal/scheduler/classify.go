package scheduler

import (
	"time"

	"meterjob/internal/types"
)

// DueState is where a schedule stands relative to the current hour.
type DueState int

const (
	DueNow DueState = iota
	DueOverdue
	DueFuture
)

func (s DueState) String() string {
	switch s {
	case DueNow:
		return "due"
	case DueOverdue:
		return "overdue"
	case DueFuture:
		return "future"
	default:
		return "unknown"
	}
}

// CurrentHour floors t to the start of its UTC hour.
func CurrentHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// Classify compares the schedule's anchor with the hour containing now. The
// whole-hour difference truncates toward zero, so an anchor at 10:30 is due
// in the 10:00 and 11:00 hours and overdue from 12:00 on.
func Classify(task types.ScheduledTask, now time.Time) (DueState, int64) {
	delta := int64(CurrentHour(now).Sub(task.Anchor()) / time.Hour)
	switch {
	case delta > 0:
		return DueOverdue, delta
	case delta < 0:
		return DueFuture, delta
	default:
		return DueNow, 0
	}
}
