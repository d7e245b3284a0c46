package repository

import (
	"context"

	"linkintel/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CustomerRepository reads customer records owned by the upstream CRM.
// This service never writes to the customers table.
type CustomerRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCustomerRepository(db *pgxpool.Pool, logger *zap.Logger) *CustomerRepository {
	return &CustomerRepository{
		db:     db,
		logger: logger,
	}
}

// ListAll performs a full table scan; the discovery pipeline needs every
// record in memory anyway.
func (r *CustomerRepository) ListAll(ctx context.Context) ([]*models.Customer, error) {
	query := squirrel.Select("id", "name", "email", "phone", "country", "tags", "category_id", "group_id", "created_at").
		From("customers").
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

	var customers []*models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.Phone, &c.Country, &c.Tags, &c.CategoryID, &c.GroupID, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		customers = append(customers, &c)
	}

	return customers, rows.Err()
}
