// Package scheduler runs the hourly metered-billing pass: it decides which
// metering schedules are due, resolves their quantity, submits usage, audits
// the outcome and advances the schedule.
package scheduler

import (
	"time"

	"meterjob/internal/types"
)

// NextRunTime returns the next emission time of a schedule of frequency f
// whose current emission is anchored at anchor. Months and years clamp to the
// end of the target month. OneTime schedules never move; unknown frequencies
// yield nil.
func NextRunTime(anchor time.Time, f types.Frequency) *time.Time {
	var next time.Time
	switch f {
	case types.FrequencyHourly:
		next = anchor.Add(time.Hour)
	case types.FrequencyDaily:
		next = anchor.AddDate(0, 0, 1)
	case types.FrequencyWeekly:
		next = anchor.AddDate(0, 0, 7)
	case types.FrequencyMonthly:
		next = addMonths(anchor, 1)
	case types.FrequencyYearly:
		next = addMonths(anchor, 12)
	case types.FrequencyOneTime:
		next = anchor
	default:
		return nil
	}
	return &next
}

// addMonths adds n calendar months, clamping to the last day of the target
// month: Jan 31 + 1 month is Feb 28 (or 29), not Mar 3.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
