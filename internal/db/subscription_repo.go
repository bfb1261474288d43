package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"meterjob/internal/types"
)

// SubscriptionRepository reads marketplace subscriptions.
type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByID looks a subscription up by its marketplace resource id. An unknown
// id yields ErrCodeNotFoundSubscription.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*types.Subscription, error) {
	var s types.Subscription
	err := r.db.QueryRow(ctx,
		`SELECT amp_subscription_id, COALESCE(name, ''), COALESCE(purchaser_tenant_id, ''), COALESCE(amp_plan_id, '')
		 FROM subscriptions
		 WHERE amp_subscription_id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.PurchaserTenantID, &s.PlanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return &s, nil
}
