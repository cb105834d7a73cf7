package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/infrastructure/config"
)

// NewIdempotencyStore creates the advisory idempotency store for the
// ingestion endpoint. Redis is used when enabled so multiple instances
// share state; otherwise the process-local store serves as fallback.
func NewIdempotencyStore(cfg config.RedisConfig, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if !cfg.Enabled {
		logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis idempotency store: %w", err)
	}

	logger.Info("using Redis idempotency store",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port))
	return store, nil
}
