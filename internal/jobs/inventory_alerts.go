package jobs

import (
	"context"
	"fmt"

	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"go.uber.org/zap"
)

const defaultLowStockThreshold = 10

// InventoryAlertService reports products whose stock has fallen below a threshold
type InventoryAlertService struct {
	stockRepo repositories.StockRepository
	threshold int
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewInventoryAlertService(stockRepo repositories.StockRepository, threshold int, m *metrics.Metrics, log *zap.Logger) *InventoryAlertService {
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &InventoryAlertService{
		stockRepo: stockRepo,
		threshold: threshold,
		metrics:   m,
		log:       log,
	}
}

func (a *InventoryAlertService) CheckLowStock(ctx context.Context) ([]*models.LowStockItem, error) {
	items, err := a.stockRepo.ListBelow(ctx, a.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return items, nil
}

// ScheduledLowStockCheck logs every low stock product and updates the gauge
func (a *InventoryAlertService) ScheduledLowStockCheck(ctx context.Context) error {
	items, err := a.CheckLowStock(ctx)
	if err != nil {
		a.log.Error("low stock check failed", zap.Error(err))
		return err
	}

	a.metrics.LowStockProducts.Set(float64(len(items)))
	for _, item := range items {
		a.log.Warn("low stock",
			zap.String("product_id", item.ProductID.String()),
			zap.String("product_name", item.ProductName),
			zap.Int("quantity", item.Quantity),
			zap.Int("threshold", a.threshold))
	}
	a.log.Info("low stock check completed", zap.Int("low_stock_products", len(items)))
	return nil
}
