package services

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, q repositories.DBTX, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, q repositories.DBTX, product *models.Product) error {
	args := m.Called(ctx, q, product)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, q repositories.DBTX, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, q repositories.DBTX, id uuid.UUID) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

func (m *MockProductRepository) List(ctx context.Context) ([]*models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}

type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) Create(ctx context.Context, q repositories.DBTX, stock *models.Stock) error {
	args := m.Called(ctx, q, stock)
	return args.Error(0)
}

func (m *MockStockRepository) LockNoWait(ctx context.Context, q repositories.DBTX, productID uuid.UUID) (*models.Stock, error) {
	args := m.Called(ctx, q, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stock), args.Error(1)
}

func (m *MockStockRepository) Decrement(ctx context.Context, q repositories.DBTX, productID uuid.UUID, quantity int) (int, error) {
	args := m.Called(ctx, q, productID, quantity)
	return args.Int(0), args.Error(1)
}

func (m *MockStockRepository) Increment(ctx context.Context, q repositories.DBTX, productID uuid.UUID, quantity int) (int, error) {
	args := m.Called(ctx, q, productID, quantity)
	return args.Int(0), args.Error(1)
}

func (m *MockStockRepository) DeleteByProduct(ctx context.Context, q repositories.DBTX, productID uuid.UUID) error {
	args := m.Called(ctx, q, productID)
	return args.Error(0)
}

func (m *MockStockRepository) GetByProduct(ctx context.Context, productID uuid.UUID) (*models.Stock, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stock), args.Error(1)
}

func (m *MockStockRepository) ListBelow(ctx context.Context, threshold int) ([]*models.LowStockItem, error) {
	args := m.Called(ctx, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LowStockItem), args.Error(1)
}

type MockStockLocker struct {
	mock.Mock
}

func (m *MockStockLocker) Acquire(ctx context.Context, tx repositories.DBTX, productID uuid.UUID, required int) (*models.Stock, error) {
	args := m.Called(ctx, tx, productID, required)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stock), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetProducts(ctx context.Context) ([]*models.Product, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]*models.Product), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) ProductsVersion(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheService) SetProducts(ctx context.Context, products []*models.Product, ttl time.Duration, version int64) (bool, error) {
	args := m.Called(ctx, products, ttl, version)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) InvalidateProducts(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCacheService) Close() error {
	return m.Called().Error(0)
}
