package repository

import (
	"context"

	"linkintel/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SubscriptionRepository reads subscription records owned upstream.
type SubscriptionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSubscriptionRepository(db *pgxpool.Pool, logger *zap.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]*models.Subscription, error) {
	query := squirrel.Select("id", "customer_id", "category_id", "vendor_name", "plan_name", "cost", "currency", "billing_cycle", "country", "next_renewal_date", "created_at").
		From("subscriptions").
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(
			&s.ID, &s.CustomerID, &s.CategoryID, &s.VendorName, &s.PlanName, &s.Cost, &s.Currency, &s.BillingCycle, &s.Country, &s.NextRenewalDate, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, &s)
	}

	return subscriptions, rows.Err()
}
