package external

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meterjob/internal/types"
)

// Stub clients let the job run locally and in test mode without tenant
// credentials. They log every call and return predictable values.

// StubDirectoryClient reports the same count for every tenant.
type StubDirectoryClient struct {
	Count  int64
	logger *slog.Logger
}

func NewStubDirectoryClient(logger *slog.Logger, count int64) *StubDirectoryClient {
	return &StubDirectoryClient{Count: count, logger: logger}
}

func (s *StubDirectoryClient) CountActivePrincipals(ctx context.Context, tenantID string) (int64, error) {
	s.logger.InfoContext(ctx, "stub: CountActivePrincipals called", "tenant_id", tenantID, "count", s.Count)
	return s.Count, nil
}

// StubBillingClient accepts every usage event.
type StubBillingClient struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewStubBillingClient(logger *slog.Logger) *StubBillingClient {
	return &StubBillingClient{logger: logger, now: time.Now}
}

func (s *StubBillingClient) SubmitUsage(ctx context.Context, req types.UsageRequest) (*types.UsageResult, error) {
	s.logger.InfoContext(ctx, "stub: SubmitUsage called",
		"resource_id", req.ResourceID,
		"dimension", req.Dimension,
		"quantity", req.Quantity,
	)
	return &types.UsageResult{
		UsageEventID:       uuid.NewString(),
		Status:             types.StatusAccepted,
		MessageTime:        s.now().UTC(),
		ResourceID:         req.ResourceID,
		Quantity:           req.Quantity,
		Dimension:          req.Dimension,
		EffectiveStartTime: req.EffectiveStartTime,
		PlanID:             req.PlanID,
	}, nil
}

// StubEmailProvider logs instead of sending.
type StubEmailProvider struct {
	logger *slog.Logger
}

func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, msg types.EmailMessage) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send called", "to", msg.To, "subject", msg.Subject)
	return "stub-" + uuid.NewString(), nil
}

var (
	_ DirectoryClient = (*StubDirectoryClient)(nil)
	_ BillingClient   = (*StubBillingClient)(nil)
	_ EmailProvider   = (*StubEmailProvider)(nil)
)
