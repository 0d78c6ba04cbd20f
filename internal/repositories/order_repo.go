package repositories

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// OrderRepository is append-only: orders are never updated or deleted
type OrderRepository interface {
	Create(ctx context.Context, q DBTX, order *models.Order) error
	List(ctx context.Context) ([]*models.Order, error)
}

type orderRepo struct {
	db DBTX
}

func NewOrderRepo(db DBTX) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, q DBTX, order *models.Order) error {
	if q == nil {
		q = r.db
	}
	query := `
		INSERT INTO orders (id, user_id, product_id, quantity, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := q.QueryRow(ctx, query, order.ID, order.UserID, order.ProductID, order.Quantity, order.Amount).Scan(&order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translateError(err))
	}
	return nil
}

// List returns every order oldest first. The result is never nil.
func (r *orderRepo) List(ctx context.Context) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, product_id, quantity, amount, created_at
		FROM orders
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.UserID, &order.ProductID, &order.Quantity, &order.Amount, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}
