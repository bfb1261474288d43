package types

import (
	"strings"
	"time"
)

// Frequency is the recurrence class of a metering schedule.
type Frequency string

const (
	FrequencyHourly  Frequency = "Hourly"
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
	FrequencyOneTime Frequency = "OneTime"
)

// Frequencies lists the known frequencies in evaluation order.
var Frequencies = []Frequency{
	FrequencyHourly,
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyMonthly,
	FrequencyYearly,
	FrequencyOneTime,
}

// ParseFrequency maps a stored frequency name to a Frequency, ignoring case.
// Unrecognised names are returned as-is with ok=false so callers can still
// log the raw value.
func ParseFrequency(s string) (Frequency, bool) {
	trimmed := strings.TrimSpace(s)
	for _, f := range Frequencies {
		if strings.EqualFold(trimmed, string(f)) {
			return f, true
		}
	}
	return Frequency(trimmed), false
}

// Known reports whether f is one of the enumerated frequencies.
func (f Frequency) Known() bool {
	for _, k := range Frequencies {
		if f == k {
			return true
		}
	}
	return false
}

// ScheduledTask is a persisted metering schedule. Quantity is the configured
// value; the value actually billed is resolved live for each attempt.
type ScheduledTask struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name" validate:"required"`
	Frequency        Frequency  `json:"frequency"`
	StartDate        time.Time  `json:"start_date" validate:"required"`
	NextRunTime      *time.Time `json:"next_run_time,omitempty"`
	SubscriptionID   string     `json:"subscription_id" validate:"required"`
	SubscriptionName string     `json:"subscription_name,omitempty"`
	PlanID           string     `json:"plan_id" validate:"required"`
	Dimension        string     `json:"dimension" validate:"required"`
	Quantity         float64    `json:"quantity"`
}

// Anchor returns the time the schedule's next emission is measured from:
// NextRunTime when set, StartDate otherwise.
func (t ScheduledTask) Anchor() time.Time {
	if t.NextRunTime != nil {
		return *t.NextRunTime
	}
	return t.StartDate
}

// RunBy is the audit attribution string for emissions made by this job.
func (t ScheduledTask) RunBy() string {
	return "Scheduler - " + t.Name
}

// Subscription is the subset of a marketplace subscription the job needs.
type Subscription struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PurchaserTenantID string `json:"purchaser_tenant_id"`
	PlanID            string `json:"plan_id"`
}
