package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StockRepository manages the single inventory row of each product. Every
// mutating method runs on the caller's transaction.
type StockRepository interface {
	Create(ctx context.Context, q DBTX, stock *models.Stock) error
	LockNoWait(ctx context.Context, q DBTX, productID uuid.UUID) (*models.Stock, error)
	Decrement(ctx context.Context, q DBTX, productID uuid.UUID, quantity int) (int, error)
	Increment(ctx context.Context, q DBTX, productID uuid.UUID, quantity int) (int, error)
	DeleteByProduct(ctx context.Context, q DBTX, productID uuid.UUID) error
	GetByProduct(ctx context.Context, productID uuid.UUID) (*models.Stock, error)
	ListBelow(ctx context.Context, threshold int) ([]*models.LowStockItem, error)
}

type stockRepo struct {
	db DBTX
}

func NewStockRepo(db DBTX) StockRepository {
	return &stockRepo{db: db}
}

func (r *stockRepo) querier(q DBTX) DBTX {
	if q == nil {
		return r.db
	}
	return q
}

func (r *stockRepo) Create(ctx context.Context, q DBTX, stock *models.Stock) error {
	query := `
		INSERT INTO stock (id, product_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING updated_at
	`
	err := r.querier(q).QueryRow(ctx, query, stock.ID, stock.ProductID, stock.Quantity).Scan(&stock.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create stock: %w", translateError(err))
	}
	return nil
}

// LockNoWait takes the row lock on a product's stock without queueing behind
// another holder. A held lock yields ErrLockNotAvailable, a missing row ErrNotFound.
// Postgres aborts the surrounding transaction on either, so callers should
// issue it inside a savepoint.
func (r *stockRepo) LockNoWait(ctx context.Context, q DBTX, productID uuid.UUID) (*models.Stock, error) {
	stock := &models.Stock{}
	query := `
		SELECT id, product_id, quantity, updated_at
		FROM stock WHERE product_id = $1
		FOR UPDATE NOWAIT
	`
	err := r.querier(q).QueryRow(ctx, query, productID).
		Scan(&stock.ID, &stock.ProductID, &stock.Quantity, &stock.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock: %w", translateError(err))
	}
	return stock, nil
}

// Decrement removes quantity units and returns what is left. The guard in the
// WHERE clause means a row that would go negative is left untouched.
func (r *stockRepo) Decrement(ctx context.Context, q DBTX, productID uuid.UUID, quantity int) (int, error) {
	var remaining int
	query := `
		UPDATE stock SET quantity = quantity - $1, updated_at = NOW()
		WHERE product_id = $2 AND quantity >= $1
		RETURNING quantity
	`
	err := r.querier(q).QueryRow(ctx, query, quantity, productID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to decrement stock: %w", ErrStockUnderflow)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement stock: %w", translateError(err))
	}
	return remaining, nil
}

func (r *stockRepo) Increment(ctx context.Context, q DBTX, productID uuid.UUID, quantity int) (int, error) {
	var total int
	query := `
		UPDATE stock SET quantity = quantity + $1, updated_at = NOW()
		WHERE product_id = $2
		RETURNING quantity
	`
	err := r.querier(q).QueryRow(ctx, query, quantity, productID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to increment stock: %w", translateError(err))
	}
	return total, nil
}

func (r *stockRepo) DeleteByProduct(ctx context.Context, q DBTX, productID uuid.UUID) error {
	query := `DELETE FROM stock WHERE product_id = $1`
	if _, err := r.querier(q).Exec(ctx, query, productID); err != nil {
		return fmt.Errorf("failed to delete stock: %w", translateError(err))
	}
	return nil
}

// GetByProduct is an unlocked read
func (r *stockRepo) GetByProduct(ctx context.Context, productID uuid.UUID) (*models.Stock, error) {
	stock := &models.Stock{}
	query := `
		SELECT id, product_id, quantity, updated_at
		FROM stock WHERE product_id = $1
	`
	err := r.db.QueryRow(ctx, query, productID).
		Scan(&stock.ID, &stock.ProductID, &stock.Quantity, &stock.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", translateError(err))
	}
	return stock, nil
}

// ListBelow reports products whose stock is under threshold, lowest first
func (r *stockRepo) ListBelow(ctx context.Context, threshold int) ([]*models.LowStockItem, error) {
	query := `
		SELECT s.product_id, p.name, s.quantity
		FROM stock s JOIN products p ON p.id = s.product_id
		WHERE s.quantity < $1
		ORDER BY s.quantity, p.name
	`
	rows, err := r.db.Query(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock: %w", err)
	}
	defer rows.Close()

	items := make([]*models.LowStockItem, 0)
	for rows.Next() {
		item := &models.LowStockItem{}
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan low stock row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate low stock rows: %w", err)
	}
	return items, nil
}
