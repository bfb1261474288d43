package types

import "time"

// UsageRequest is the body of a marketplace usage event.
type UsageRequest struct {
	ResourceID         string    `json:"resourceId"`
	Quantity           float64   `json:"quantity"`
	Dimension          string    `json:"dimension"`
	EffectiveStartTime time.Time `json:"effectiveStartTime"`
	PlanID             string    `json:"planId"`
}

// UsageResult is the billing API's answer to an accepted usage event.
type UsageResult struct {
	UsageEventID       string    `json:"usageEventId"`
	Status             string    `json:"status"`
	MessageTime        time.Time `json:"messageTime"`
	ResourceID         string    `json:"resourceId"`
	Quantity           float64   `json:"quantity"`
	Dimension          string    `json:"dimension"`
	EffectiveStartTime time.Time `json:"effectiveStartTime"`
	PlanID             string    `json:"planId"`
}
