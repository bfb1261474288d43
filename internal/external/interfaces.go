package external

import (
	"context"

	"meterjob/internal/types"
)

// DirectoryClient counts enabled user accounts in a customer tenant.
type DirectoryClient interface {
	CountActivePrincipals(ctx context.Context, tenantID string) (int64, error)
}

// BillingClient submits one usage event. A refusal by the billing API is
// returned as *types.BillingRejection.
type BillingClient interface {
	SubmitUsage(ctx context.Context, req types.UsageRequest) (*types.UsageResult, error)
}

// EmailProvider delivers a rendered email and returns the provider's
// message id.
type EmailProvider interface {
	Send(ctx context.Context, msg types.EmailMessage) (string, error)
}
