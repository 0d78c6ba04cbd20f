package services

import (
	"context"
	"errors"
	"math"
	"time"

	"storefront/internal/common"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const eventPublishTimeout = 2 * time.Second

type OrderService interface {
	PlaceOrder(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.PlacedOrder, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
}

type orderService struct {
	db          repositories.DBTX
	userRepo    repositories.UserRepository
	productRepo repositories.ProductRepository
	stockRepo   repositories.StockRepository
	orderRepo   repositories.OrderRepository
	locker      StockLocker
	publisher   events.Publisher
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewOrderService(db repositories.DBTX, userRepo repositories.UserRepository, productRepo repositories.ProductRepository, stockRepo repositories.StockRepository, orderRepo repositories.OrderRepository, locker StockLocker, publisher events.Publisher, m *metrics.Metrics, log *zap.Logger) OrderService {
	return &orderService{
		db:          db,
		userRepo:    userRepo,
		productRepo: productRepo,
		stockRepo:   stockRepo,
		orderRepo:   orderRepo,
		locker:      locker,
		publisher:   publisher,
		metrics:     m,
		log:         log,
	}
}

// PlaceOrder buys quantity units of a product for a user in one transaction.
// Stock is never oversold: the stock row is locked before it is read for the
// decision and stays locked until commit or rollback.
func (s *orderService) PlaceOrder(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.PlacedOrder, error) {
	if quantity <= 0 {
		s.metrics.OrderOutcomes.WithLabelValues("invalid").Inc()
		return nil, common.NewValidation("quantity", "quantity must be positive")
	}

	ctx, span := tracer.Start(ctx, "OrderService.PlaceOrder", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("product.id", productID.String()),
		attribute.Int("order.quantity", quantity),
	))
	defer span.End()

	start := time.Now()
	placed, err := s.placeOrder(ctx, userID, productID, quantity)
	s.metrics.OrderDuration.Observe(time.Since(start).Seconds())
	s.metrics.OrderOutcomes.WithLabelValues(outcomeLabel(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, common.KindOf(err).String())
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", placed.Order.ID.String()))
	s.log.Info("order placed",
		zap.String("order_id", placed.Order.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
		zap.Int("remaining_stock", placed.RemainingStock))

	s.publishPlaced(ctx, placed)
	return placed, nil
}

func (s *orderService) placeOrder(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.PlacedOrder, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, s.internal("failed to begin transaction", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	user, err := s.userRepo.GetByID(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("User not found")
		}
		return nil, s.classify("failed to load user", err)
	}

	// price is read without a lock; a concurrent price change may be missed
	product, err := s.productRepo.GetByID(ctx, tx, productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("Product not found")
		}
		return nil, s.classify("failed to load product", err)
	}

	stock, err := s.locker.Acquire(ctx, tx, productID, quantity)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			if appErr.Kind == common.KindInternal {
				s.log.Error("stock lock failed", zap.String("product_id", productID.String()), zap.Error(err))
			}
			return nil, appErr
		}
		return nil, s.internal("failed to lock stock", err)
	}

	amount, ok := orderAmount(product.Price, quantity)
	if !ok {
		return nil, s.internal("order amount overflows", errors.New("price times quantity exceeds int64"))
	}

	remaining, err := s.stockRepo.Decrement(ctx, tx, productID, quantity)
	if err != nil {
		return nil, s.classify("failed to decrement stock", err)
	}

	order := &models.Order{
		ID:        uuid.New(),
		UserID:    user.ID,
		ProductID: product.ID,
		Quantity:  quantity,
		Amount:    amount,
	}
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, s.classify("failed to insert order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, s.classify("failed to commit order", err)
	}

	s.log.Debug("stock decremented",
		zap.String("product_id", productID.String()),
		zap.Int("before", stock.Quantity),
		zap.Int("after", remaining))

	return &models.PlacedOrder{Order: order, RemainingStock: remaining}, nil
}

// ListOrders returns all orders oldest first, never nil
func (s *orderService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	orders, err := s.orderRepo.List(ctx)
	if err != nil {
		s.log.Error("failed to list orders", zap.Error(err))
		return nil, common.NewInternal("Error retrieving orders", err)
	}
	if orders == nil {
		orders = make([]*models.Order, 0)
	}
	return orders, nil
}

// classify turns a storage error inside the order transaction into the
// error reported to the caller. Conflicts with other transactions are
// reported as contention and are not retried here.
func (s *orderService) classify(msg string, err error) error {
	if repositories.IsConcurrencyConflict(err) {
		s.log.Warn(msg, zap.Error(err))
		return common.NewContention(msgConcurrentUpdate, err)
	}
	return s.internal(msg, err)
}

func (s *orderService) internal(msg string, err error) error {
	s.log.Error(msg, zap.Error(err))
	return common.NewInternal(msgOrderInternalError, err)
}

func (s *orderService) publishPlaced(ctx context.Context, placed *models.PlacedOrder) {
	event := &models.OrderPlacedEvent{
		EventID:        uuid.NewString(),
		OrderID:        placed.Order.ID,
		UserID:         placed.Order.UserID,
		ProductID:      placed.Order.ProductID,
		Quantity:       placed.Order.Quantity,
		Amount:         placed.Order.Amount,
		RemainingStock: placed.RemainingStock,
		Timestamp:      time.Now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := s.publisher.PublishOrderPlaced(pubCtx, event); err != nil {
		s.log.Warn("failed to publish order event",
			zap.String("order_id", placed.Order.ID.String()),
			zap.Error(err))
	}
}

func orderAmount(price int64, quantity int) (int64, bool) {
	if price < 0 || quantity < 0 {
		return 0, false
	}
	if quantity != 0 && price > math.MaxInt64/int64(quantity) {
		return 0, false
	}
	return price * int64(quantity), true
}

func outcomeLabel(err error) string {
	if err == nil {
		return "placed"
	}
	return common.KindOf(err).String()
}
