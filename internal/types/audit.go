package types

import "time"

// OutcomeKind classifies the terminal state of one schedule in one pass.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomeRejected
	OutcomeSkipped
	OutcomeMissing
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMissing:
		return "missing"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SkipReason says why an emission was not attempted.
type SkipReason string

const (
	SkipLookup     SkipReason = "lookup"
	SkipQuantity   SkipReason = "quantity"
	SkipValidation SkipReason = "validation"
)

// Persisted audit status strings. A rejected emission stores the billing
// API's error code instead.
const (
	StatusAccepted = "Accepted"
	StatusSkipped  = "Skipped"
	StatusMissing  = "Missing"
	StatusFailed   = "Failed"
)

// Outcome is the result of processing one schedule. Construct it with the
// helpers below so Kind and payloads stay consistent.
type Outcome struct {
	Kind         OutcomeKind
	Code         string
	Reason       SkipReason
	RequestJSON  string
	ResponseJSON string
}

// Accepted is a usage event the billing API took.
func Accepted(request, response string) Outcome {
	return Outcome{Kind: OutcomeAccepted, RequestJSON: request, ResponseJSON: response}
}

// Rejected is a usage event the billing API refused with code.
func Rejected(code, request, response string) Outcome {
	return Outcome{Kind: OutcomeRejected, Code: code, RequestJSON: request, ResponseJSON: response}
}

// Skipped is a due schedule for which no emission was attempted.
func Skipped(reason SkipReason, request, response string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason, RequestJSON: request, ResponseJSON: response}
}

// Missing marks an overdue schedule. detail is stored as the response.
func Missing(detail string) Outcome {
	return Outcome{Kind: OutcomeMissing, ResponseJSON: detail}
}

// Failed is an emission that errored before the billing API gave an answer.
func Failed(request, detail string) Outcome {
	return Outcome{Kind: OutcomeFailed, RequestJSON: request, ResponseJSON: detail}
}

// Status returns the string persisted in the audit log's status column.
func (o Outcome) Status() string {
	switch o.Kind {
	case OutcomeAccepted:
		return StatusAccepted
	case OutcomeRejected:
		if o.Code == "" {
			return "Rejected"
		}
		return o.Code
	case OutcomeSkipped:
		return StatusSkipped
	case OutcomeMissing:
		return StatusMissing
	default:
		return StatusFailed
	}
}

// IsAccepted reports whether the billing API accepted the usage event.
func (o Outcome) IsAccepted() bool {
	return o.Kind == OutcomeAccepted
}

// MeteredAuditLog is one append-only audit row.
type MeteredAuditLog struct {
	ID                    int64     `json:"id"`
	ScheduleID            int64     `json:"schedule_id"`
	SubscriptionID        string    `json:"subscription_id"`
	RequestJSON           string    `json:"request_json"`
	ResponseJSON          string    `json:"response_json"`
	StatusCode            string    `json:"status_code"`
	RunBy                 string    `json:"run_by"`
	SubscriptionUsageDate time.Time `json:"subscription_usage_date"`
	CreatedAt             time.Time `json:"created_at"`
}
