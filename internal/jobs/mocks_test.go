package jobs

import (
	"context"
	"io"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) Create(ctx context.Context, q repositories.DBTX, stock *models.Stock) error {
	return m.Called(ctx, q, stock).Error(0)
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
	return m.Called(ctx, q, productID).Error(0)
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

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, q repositories.DBTX, order *models.Order) error {
	return m.Called(ctx, q, order).Error(0)
}

func (m *MockOrderRepository) List(ctx context.Context) ([]*models.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Order), args.Error(1)
}

type MockMinioService struct {
	mock.Mock
	uploaded []byte
}

func (m *MockMinioService) Upload(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.uploaded = body
	return m.Called(ctx, bucketName, objectName, objectSize, contentType).Error(0)
}

func (m *MockMinioService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	return m.Called(ctx, bucketName).Error(0)
}
