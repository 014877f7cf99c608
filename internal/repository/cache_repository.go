package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

// RegistrationListKey builds the cache key for a trimester's registration list.
func RegistrationListKey(trimester models.Trimester) string {
	return fmt.Sprintf("registrations:%s", trimester)
}

// CacheRepository provides whole-payload caching of registration lists.
// Invalidation is cleared-on-write per trimester; a nil client disables
// caching entirely.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// GetRegistrationList returns the cached registration list for a trimester.
func (r *CacheRepository) GetRegistrationList(ctx context.Context, trimester models.Trimester) ([]models.Registration, error) {
	var regs []models.Registration
	if err := r.Get(ctx, RegistrationListKey(trimester), &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// SetRegistrationList caches the registration list for a trimester.
func (r *CacheRepository) SetRegistrationList(ctx context.Context, trimester models.Trimester, regs []models.Registration, ttl time.Duration) error {
	return r.Set(ctx, RegistrationListKey(trimester), regs, ttl)
}

// InvalidateTrimester drops the cached list for one trimester after a write.
func (r *CacheRepository) InvalidateTrimester(ctx context.Context, trimester models.Trimester) {
	if r.client == nil {
		return
	}
	if err := r.client.Del(ctx, RegistrationListKey(trimester)).Err(); err != nil {
		r.logger.Warn("failed to invalidate registration cache",
			zap.String("trimester", string(trimester)), zap.Error(err))
	}
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
