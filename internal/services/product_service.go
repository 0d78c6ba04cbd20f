package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/caching"
	"storefront/internal/common"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	productListTTL      = 5 * time.Minute
	maxProductName      = 200
	maxDescription      = 2000
	maxStockQuantity    = 1_000_000
	maxRestockQuantity  = 1_000_000
	msgProductNotFound  = "Product not found"
	msgProductReference = "Product has orders and cannot be deleted"
)

type ProductService interface {
	Create(ctx context.Context, product *models.Product, quantity int) (*models.ProductWithStock, error)
	Update(ctx context.Context, product *models.Product) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Product, error)
	Restock(ctx context.Context, productID uuid.UUID, quantity int) (*models.Stock, error)
}

type productService struct {
	db           repositories.DBTX
	productRepo  repositories.ProductRepository
	stockRepo    repositories.StockRepository
	locker       StockLocker
	cacheService caching.CacheService
	log          *zap.Logger
}

func NewProductService(db repositories.DBTX, productRepo repositories.ProductRepository, stockRepo repositories.StockRepository, locker StockLocker, cacheService caching.CacheService, log *zap.Logger) ProductService {
	return &productService{
		db:           db,
		productRepo:  productRepo,
		stockRepo:    stockRepo,
		locker:       locker,
		cacheService: cacheService,
		log:          log,
	}
}

func validateProduct(product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if err := common.ValidateRequiredString(product.Name, "name", maxProductName); err != nil {
		return common.NewValidation("name", err.Error())
	}
	if len(product.Description) > maxDescription {
		return common.NewValidation("description", fmt.Sprintf("description cannot exceed %d characters", maxDescription))
	}
	if product.Price <= 0 {
		return common.NewValidation("price", "price must be positive")
	}
	return nil
}

// Create inserts the product together with its stock row
func (s *productService) Create(ctx context.Context, product *models.Product, quantity int) (*models.ProductWithStock, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := common.ValidateNonNegativeInteger(quantity, "default_quantity", maxStockQuantity); err != nil {
		return nil, common.NewValidation("default_quantity", err.Error())
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, s.internal("Failed to create product", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	product.ID = uuid.New()
	if err := s.productRepo.Create(ctx, tx, product); err != nil {
		return nil, s.internal("Failed to create product", err)
	}
	stock := &models.Stock{ID: uuid.New(), ProductID: product.ID, Quantity: quantity}
	if err := s.stockRepo.Create(ctx, tx, stock); err != nil {
		return nil, s.internal("Failed to create product", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.internal("Failed to create product", err)
	}

	s.invalidateList(ctx)
	s.log.Info("product created", zap.String("product_id", product.ID.String()), zap.Int("quantity", quantity))
	return &models.ProductWithStock{Product: *product, Quantity: quantity}, nil
}

func (s *productService) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound(msgProductNotFound)
		}
		return nil, s.internal("Failed to update product", err)
	}

	s.invalidateList(ctx)
	return product, nil
}

// Delete removes the stock row and the product in one transaction
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return s.internal("Failed to delete product", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := s.stockRepo.DeleteByProduct(ctx, tx, id); err != nil {
		return s.internal("Failed to delete product", err)
	}
	if err := s.productRepo.Delete(ctx, tx, id); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return common.NewNotFound(msgProductNotFound)
		case errors.Is(err, repositories.ErrForeignKey):
			return common.NewConflict(msgProductReference, err)
		}
		return s.internal("Failed to delete product", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, repositories.ErrForeignKey) {
			return common.NewConflict(msgProductReference, err)
		}
		return s.internal("Failed to delete product", err)
	}

	s.invalidateList(ctx)
	s.log.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

// List serves the catalog from Redis when possible. Cache failures only cost
// a database read. The cache version is read before the database so a write
// that invalidates in between keeps this list out of the cache.
func (s *productService) List(ctx context.Context) ([]*models.Product, error) {
	if cached, ok, err := s.cacheService.GetProducts(ctx); err != nil {
		s.log.Warn("product cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	version, verr := s.cacheService.ProductsVersion(ctx)
	if verr != nil {
		s.log.Warn("product cache version read failed", zap.Error(verr))
	}

	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, s.internal("Failed to retrieve products", err)
	}

	if verr == nil {
		stored, err := s.cacheService.SetProducts(ctx, products, productListTTL, version)
		if err != nil {
			s.log.Warn("product cache write failed", zap.Error(err))
		} else if !stored {
			s.log.Debug("product list changed during read, not cached", zap.Int64("version", version))
		}
	}
	return products, nil
}

// Restock adds units under the same no-wait lock used by order placement
func (s *productService) Restock(ctx context.Context, productID uuid.UUID, quantity int) (*models.Stock, error) {
	if err := common.ValidatePositiveInteger(quantity, "quantity", maxRestockQuantity); err != nil {
		return nil, common.NewValidation("quantity", err.Error())
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, s.internal("Failed to restock product", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	stock, err := s.locker.Acquire(ctx, tx, productID, 0)
	if err != nil {
		if common.KindOf(err) == common.KindInternal {
			return nil, s.internal("Failed to restock product", err)
		}
		return nil, err
	}

	total, err := s.stockRepo.Increment(ctx, tx, productID, quantity)
	if err != nil {
		return nil, s.internal("Failed to restock product", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if repositories.IsConcurrencyConflict(err) {
			return nil, common.NewContention(msgConcurrentUpdate, err)
		}
		return nil, s.internal("Failed to restock product", err)
	}

	stock.Quantity = total
	s.log.Info("product restocked",
		zap.String("product_id", productID.String()),
		zap.Int("added", quantity),
		zap.Int("quantity", total))
	return stock, nil
}

func (s *productService) invalidateList(ctx context.Context) {
	if err := s.cacheService.InvalidateProducts(ctx); err != nil {
		s.log.Warn("product cache invalidation failed", zap.Error(err))
	}
}

func (s *productService) internal(msg string, err error) error {
	s.log.Error(msg, zap.Error(err))
	return common.NewInternal(msg, err)
}
