package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"go.uber.org/zap"
)

const archiveTimeLayout = "20060102T150405Z"

// OrderArchiver writes a JSON snapshot of the order history to object storage
type OrderArchiver struct {
	orderRepo repositories.OrderRepository
	store     services.MinioService
	bucket    string
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewOrderArchiver(orderRepo repositories.OrderRepository, store services.MinioService, bucket string, m *metrics.Metrics, log *zap.Logger) *OrderArchiver {
	return &OrderArchiver{
		orderRepo: orderRepo,
		store:     store,
		bucket:    bucket,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func archiveObjectName(t time.Time) string {
	return "orders/" + t.UTC().Format(archiveTimeLayout) + ".json"
}

// Export uploads all orders and returns the object name written
func (a *OrderArchiver) Export(ctx context.Context) (string, error) {
	objectName, err := a.export(ctx)
	if err != nil {
		a.metrics.ArchiveRuns.WithLabelValues("failed").Inc()
		a.log.Error("order archive failed", zap.String("bucket", a.bucket), zap.Error(err))
		return "", err
	}
	a.metrics.ArchiveRuns.WithLabelValues("succeeded").Inc()
	return objectName, nil
}

func (a *OrderArchiver) export(ctx context.Context) (string, error) {
	orders, err := a.orderRepo.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list orders: %w", err)
	}

	payload, err := json.Marshal(orders)
	if err != nil {
		return "", fmt.Errorf("failed to encode orders: %w", err)
	}

	if err := a.store.EnsureBucketExists(ctx, a.bucket); err != nil {
		return "", err
	}

	objectName := archiveObjectName(a.now())
	if err := a.store.Upload(ctx, a.bucket, objectName, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return "", err
	}

	a.log.Info("orders archived",
		zap.String("bucket", a.bucket),
		zap.String("object", objectName),
		zap.Int("orders", len(orders)))
	return objectName, nil
}
