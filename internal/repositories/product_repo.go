package repositories

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
)

type ProductRepository interface {
	Create(ctx context.Context, q DBTX, product *models.Product) error
	GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, q DBTX, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Product, error)
}

type productRepo struct {
	db DBTX
}

func NewProductRepo(db DBTX) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) querier(q DBTX) DBTX {
	if q == nil {
		return r.db
	}
	return q
}

func (r *productRepo) Create(ctx context.Context, q DBTX, product *models.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.querier(q).QueryRow(ctx, query, product.ID, product.Name, product.Description, product.Price).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", translateError(err))
	}
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.Product, error) {
	product := &models.Product{}
	query := `
		SELECT id, name, description, price, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	err := r.querier(q).QueryRow(ctx, query, id).
		Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", translateError(err))
	}
	return product, nil
}

// Update overwrites the mutable catalog fields. A missing product yields ErrNotFound.
func (r *productRepo) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, product.ID, product.Name, product.Description, product.Price).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", translateError(err))
	}
	return nil
}

func (r *productRepo) Delete(ctx context.Context, q DBTX, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`
	tag, err := r.querier(q).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete product: %w", ErrNotFound)
	}
	return nil
}

func (r *productRepo) List(ctx context.Context) ([]*models.Product, error) {
	query := `
		SELECT id, name, description, price, created_at, updated_at
		FROM products
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		product := &models.Product{}
		if err := rows.Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}
