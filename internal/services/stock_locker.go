package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/common"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	msgStockNotFound      = "Product stock not found"
	msgInsufficientStock  = "Insufficient stock available"
	msgHighLoad           = "High load, please try again later"
	msgConcurrentUpdate   = "Concurrent update detected, please retry"
	msgOrderInternalError = "Internal server error while processing order"
)

var tracer trace.Tracer = otel.Tracer("storefront/services")

// ErrRetriesExhausted is returned by retryOnContention when every attempt hit
// a retryable error. The last attempt's error is wrapped alongside it.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds the lock retry loop. Before attempt n+1 the caller
// waits BaseDelay*n, so with the defaults the waits are 100ms then 200ms.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// Delay is the wait after the given failed attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryOnContention calls attempt until it succeeds, fails with an error
// retryable does not accept, or MaxAttempts is reached. It never sleeps after
// the final attempt. The number of attempts made is returned with the result.
func retryOnContention[T any](ctx context.Context, policy RetryPolicy, sleep sleepFunc, retryable func(error) bool, attempt func(ctx context.Context, n int) (T, error)) (T, int, error) {
	var zero T
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		result, err := attempt(ctx, n)
		if err == nil {
			return result, n, nil
		}
		if !retryable(err) {
			return zero, n, err
		}
		lastErr = err

		if n == maxAttempts {
			break
		}
		if err := sleep(ctx, policy.Delay(n)); err != nil {
			return zero, n, err
		}
	}
	return zero, maxAttempts, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// StockLocker acquires the row lock on a product's stock inside the caller's
// transaction. The lock is held until that transaction ends.
type StockLocker interface {
	Acquire(ctx context.Context, tx repositories.DBTX, productID uuid.UUID, required int) (*models.Stock, error)
}

type stockLocker struct {
	stockRepo repositories.StockRepository
	policy    RetryPolicy
	sleep     sleepFunc
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewStockLocker(stockRepo repositories.StockRepository, policy RetryPolicy, m *metrics.Metrics, log *zap.Logger) StockLocker {
	return &stockLocker{
		stockRepo: stockRepo,
		policy:    policy,
		sleep:     sleepContext,
		metrics:   m,
		log:       log,
	}
}

var errShortStock = errors.New("stock below required quantity")

// Acquire returns the locked stock row when it holds at least required units.
// Each attempt runs in its own savepoint: a failed NOWAIT aborts only the
// savepoint, and a short row is released at once by rolling it back.
func (l *stockLocker) Acquire(ctx context.Context, tx repositories.DBTX, productID uuid.UUID, required int) (*models.Stock, error) {
	ctx, span := tracer.Start(ctx, "StockLocker.Acquire", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
		attribute.Int("stock.required", required),
	))
	defer span.End()

	stock, attempts, err := retryOnContention(ctx, l.policy, l.sleep, isLockBusy,
		func(ctx context.Context, _ int) (*models.Stock, error) {
			return l.attempt(ctx, tx, productID, required)
		})
	span.SetAttributes(attribute.Int("stock.lock_attempts", attempts))

	if err == nil {
		l.metrics.LockAttempts.WithLabelValues("acquired").Inc()
		return stock, nil
	}

	span.RecordError(err)
	switch {
	case errors.Is(err, errShortStock):
		l.metrics.LockAttempts.WithLabelValues("insufficient").Inc()
		return nil, common.NewInsufficientStock(msgInsufficientStock)
	case errors.Is(err, repositories.ErrNotFound):
		l.metrics.LockAttempts.WithLabelValues("missing").Inc()
		return nil, common.NewNotFound(msgStockNotFound)
	case errors.Is(err, ErrRetriesExhausted):
		l.metrics.LockAttempts.WithLabelValues("exhausted").Inc()
		span.SetStatus(codes.Error, "lock unavailable")
		l.log.Warn("stock lock unavailable",
			zap.String("product_id", productID.String()),
			zap.Int("attempts", attempts))
		return nil, common.NewContention(msgHighLoad, err)
	default:
		l.metrics.LockAttempts.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, common.NewInternal(msgOrderInternalError, err)
	}
}

func (l *stockLocker) attempt(ctx context.Context, tx repositories.DBTX, productID uuid.UUID, required int) (*models.Stock, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open savepoint: %w", err)
	}

	stock, err := l.stockRepo.LockNoWait(ctx, sp, productID)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return nil, fmt.Errorf("failed to roll back savepoint: %w", errors.Join(err, rbErr))
		}
		if isLockBusy(err) {
			l.metrics.LockAttempts.WithLabelValues("busy").Inc()
		}
		return nil, err
	}

	if stock.Quantity < required {
		if err := sp.Rollback(ctx); err != nil {
			return nil, fmt.Errorf("failed to release short stock row: %w", err)
		}
		return nil, fmt.Errorf("%w: have %d, need %d", errShortStock, stock.Quantity, required)
	}

	if err := sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return stock, nil
}

func isLockBusy(err error) bool {
	return errors.Is(err, repositories.ErrLockNotAvailable)
}
