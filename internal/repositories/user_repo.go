package repositories

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type userRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, address, role, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.PasswordHash, user.Address, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translateError(err))
	}
	return nil
}

// GetByID reads through q so the lookup can share the caller's transaction
func (r *userRepo) GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.User, error) {
	if q == nil {
		q = r.db
	}
	user := &models.User{}
	query := `
		SELECT id, username, address, role, created_at
		FROM users
		WHERE id = $1
	`
	err := q.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.Address, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translateError(err))
	}
	return user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, password_hash, address, role, created_at
		FROM users
		WHERE username = $1
	`
	err := r.db.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Address, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", translateError(err))
	}
	return user, nil
}
