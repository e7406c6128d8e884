package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/config"
)

// Backend bundles the idempotency store and the locker built from one
// configuration.
type Backend struct {
	Store  shared.IdempotencyStore
	Locker shared.Locker
	client *redis.Client
}

// Distributed reports whether the backend is shared across instances.
func (b *Backend) Distributed() bool {
	return b.client != nil
}

// Ping checks the Redis connection. In-memory backends are always up.
func (b *Backend) Ping(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Ping(ctx).Err()
}

// Close releases the store and the Redis client, if any.
func (b *Backend) Close() error {
	// The Redis store owns the client, so closing it closes both.
	return b.Store.Close()
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether a configured but unreachable Redis
// falls back to in-memory implementations. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// Factory creates the cache backend based on configuration.
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create connects to Redis when it is configured, otherwise it returns
// in-memory implementations.
func (f *Factory) Create(ctx context.Context) (*Backend, error) {
	if !f.redisConfig.Enabled() {
		f.logger.Info("redis not configured, using in-memory idempotency store and locks")
		return NewInMemoryBackend(), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using redis idempotency store and locks", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisBackend(client, f.logger), nil
	}

	if !f.allowInMemoryFallback {
		return nil, errors.Join(errors.New("redis required for idempotency and locks but unavailable"), err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store and locks. "+
		"Refunds are only serialized within this instance.",
		zap.Error(err),
	)
	return NewInMemoryBackend(), nil
}

// NewRedisBackend builds a Backend on an existing client.
func NewRedisBackend(client *redis.Client, logger *zap.Logger) *Backend {
	return &Backend{
		Store:  NewRedisIdempotencyStore(client, ""),
		Locker: NewRedisLocker(client, WithLockLogger(logger)),
		client: client,
	}
}

// NewInMemoryBackend builds a process-local Backend.
func NewInMemoryBackend() *Backend {
	return &Backend{
		Store:  NewInMemoryIdempotencyStore(),
		Locker: NewInMemoryLocker(),
	}
}
