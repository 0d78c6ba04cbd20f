package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "storefront/docs"
	"storefront/internal/caching"
	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/jobs"
	"storefront/internal/jobs/background"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/tracing"
	"storefront/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracing.Shutdown(context.Background(), tp); err != nil {
			zl.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// Database connection
	pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, zl)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.ApplySchema {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
	}

	// JWT configuration
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = random.String(32)
		zl.Warn("JWT_SECRET not set, using a generated secret; tokens will not survive a restart")
	}

	// Redis
	redisClient, err := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	cacheSvc := caching.NewRedisCacheService(redisClient)
	defer func() { _ = cacheSvc.Close() }()
	if err := cacheSvc.Ping(ctx); err != nil {
		zl.Warn("redis unreachable at startup, cache and rate limiting will fail open", zap.Error(err))
	}

	// Order events
	publisher := events.NewNopPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic), zl)
		zl.Info("publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.OrderTopic))
	}
	defer func() { _ = publisher.Close() }()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Create repositories
	userRepo := repositories.NewUserRepo(pool)
	productRepo := repositories.NewProductRepo(pool)
	stockRepo := repositories.NewStockRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)

	// Create services
	policy := services.RetryPolicy{MaxAttempts: cfg.StockLock.MaxAttempts, BaseDelay: cfg.StockLock.BaseDelay}
	locker := services.NewStockLocker(stockRepo, policy, m, zl)
	authSvc := services.NewAuthService(userRepo, jwtSecret, cfg.Auth.TokenTTL, zl)
	productSvc := services.NewProductService(pool, productRepo, stockRepo, locker, cacheSvc, zl)
	orderSvc := services.NewOrderService(pool, userRepo, productRepo, stockRepo, orderRepo, locker, publisher, m, zl)

	// Background jobs
	schedOpts := background.Options{
		Alerts:           jobs.NewInventoryAlertService(stockRepo, cfg.Jobs.LowStockThreshold, m, zl),
		LowStockInterval: cfg.Jobs.LowStockInterval,
	}
	if cfg.Archive.Enabled {
		minioSvc, err := services.NewMinioService(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Region, cfg.Archive.UseSSL)
		if err != nil {
			return err
		}
		schedOpts.Archiver = jobs.NewOrderArchiver(orderRepo, minioSvc, cfg.Archive.Bucket, m, zl)
		schedOpts.ArchiveInterval = cfg.Archive.Interval
	}
	scheduler, err := background.NewJobScheduler(schedOpts, zl)
	if err != nil {
		return err
	}

	jwtOpts := middleware.JWTOptions{Secret: jwtSecret}
	if cfg.Auth.JWKSURL != "" {
		jwks, err := middleware.NewJWKS(ctx, cfg.Auth.JWKSURL, zl)
		if err != nil {
			return err
		}
		defer jwks.EndBackground()
		jwtOpts.KeyFunc = jwks.Keyfunc
	}

	e := newServer(cfg, zl, serverDeps{
		health:   handlers.NewHealthHandlers(pool, cacheSvc, zl),
		auth:     handlers.NewAuthHandlers(authSvc),
		products: handlers.NewProductHandlers(productSvc),
		orders:   handlers.NewOrderHandlers(orderSvc),
		cache:    cacheSvc,
		jwt:      jwtOpts,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		zl.Info("starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		return scheduler.Stop()
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type serverDeps struct {
	health   *handlers.HealthHandlers
	auth     *handlers.AuthHandlers
	products *handlers.ProductHandlers
	orders   *handlers.OrderHandlers
	cache    caching.CacheService
	jwt      middleware.JWTOptions
}

func newServer(cfg *config.Config, zl *zap.Logger, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(logger.RequestLogger(zl))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	e.GET("/", deps.health.Root)
	e.GET("/health/ready", deps.health.ReadinessCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	auth := e.Group("/auth")
	auth.POST("/signup", deps.auth.Signup)
	auth.POST("/signin", deps.auth.Signin)

	// trailing slashes are stripped before routing, so /order/ lands on /order
	order := e.Group("/order")
	buyMiddleware := []echo.MiddlewareFunc{}
	if cfg.RateLimit.Enabled {
		buyMiddleware = append(buyMiddleware, middleware.RateLimit(deps.cache, cfg.RateLimit.Requests, cfg.RateLimit.Window, zl))
	}
	order.POST("/buy", deps.orders.BuyProduct, buyMiddleware...)
	order.GET("", deps.orders.ListOrders)

	e.GET("/product", deps.products.ListProducts)

	admin := e.Group("/admin", middleware.JWTAuth(deps.jwt), middleware.RequireRole(models.RoleAdmin))
	admin.POST("/product", deps.products.CreateProduct)
	admin.PUT("/product/:id", deps.products.UpdateProduct)
	admin.DELETE("/product/:id", deps.products.DeleteProduct)
	admin.POST("/product/:id/restock", deps.products.RestockProduct)

	return e
}
