package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront"

// CacheService covers the two Redis uses of the service: the public product
// list and per-client request counters. Stock is never cached.
type CacheService interface {
	// Product list caching
	GetProducts(ctx context.Context) ([]*models.Product, bool, error)
	ProductsVersion(ctx context.Context) (int64, error)
	SetProducts(ctx context.Context, products []*models.Product, ttl time.Duration, version int64) (bool, error)
	InvalidateProducts(ctx context.Context) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisClient accepts either host:port or a redis:// URL
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return redis.NewClient(opts), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}), nil
}

func NewRedisCacheService(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func productListKey() string {
	return fmt.Sprintf("%s:products:all", keyPrefix)
}

// productVersionKey is bumped on every invalidation so that a list read
// before the bump is never written back afterwards.
func productVersionKey() string {
	return fmt.Sprintf("%s:products:version", keyPrefix)
}

func rateLimitKey(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", keyPrefix, key)
}

// GetProducts reports a miss with ok=false and a nil error
func (r *redisCacheService) GetProducts(ctx context.Context) ([]*models.Product, bool, error) {
	data, err := r.client.Get(ctx, productListKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var products []*models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, false, err
	}
	if products == nil {
		products = make([]*models.Product, 0)
	}
	return products, true, nil
}

// ProductsVersion returns 0 until the list has been invalidated once
func (r *redisCacheService) ProductsVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, productVersionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// SetProducts stores the list only if no invalidation happened since version
// was read. stored is false when the write was skipped as stale.
func (r *redisCacheService) SetProducts(ctx context.Context, products []*models.Product, ttl time.Duration, version int64) (bool, error) {
	data, err := json.Marshal(products)
	if err != nil {
		return false, err
	}

	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, productVersionKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productListKey(), data, ttl)
			return nil
		}); err != nil {
			return err
		}
		stored = true
		return nil
	}, productVersionKey())
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored, nil
}

func (r *redisCacheService) InvalidateProducts(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, productVersionKey())
		pipe.Del(ctx, productListKey())
		return nil
	})
	return err
}

// IsRateLimited counts one request against key in a fixed window. The expiry
// is only set by the first request of a window.
func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := rateLimitKey(key)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, cacheKey)
		pipe.ExpireNX(ctx, cacheKey, window)
		return nil
	})
	if err != nil {
		return false, err
	}

	return incr.Val() > int64(limit), nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}
