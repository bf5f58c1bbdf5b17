package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	attemptsKeyPrefix = "checkout:attempts:"
	idempotencyKeyTTL = 30 * time.Second
	stockCacheTTL     = 30 * time.Second
	attemptsTTL       = 24 * time.Hour

	// stored for products inventory does not know about
	unknownStock = "-1"
)

var recordAttemptScript = redis.NewScript(`
local key = KEYS[1]
local ttl = tonumber(ARGV[1])

local n = redis.call('INCR', key)
if n == 1 then
	redis.call('EXPIRE', key, ttl)
end

return n
`)

// releaseLockScript deletes the key only if it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) CachedStock(ctx context.Context, productIDs []int64) (domain.StockLevels, error) {
	levels := make(domain.StockLevels, len(productIDs))
	if len(productIDs) == 0 {
		return levels, nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = stockKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		snap := domain.StockSnapshot{ProductID: productIDs[i]}
		if n >= 0 {
			snap.StockQuantity = domain.IntPtr(n)
		}
		levels[productIDs[i]] = snap
	}
	return levels, nil
}

func (r *RedisAdapter) CacheStock(ctx context.Context, snapshots []domain.StockSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, s := range snapshots {
		value := unknownStock
		if s.StockQuantity != nil {
			value = strconv.Itoa(*s.StockQuantity)
		}
		pipe.Set(ctx, stockKey(s.ProductID), value, stockCacheTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set stock failed: %w", err)
	}
	return nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID int64, quantity int) error {
	return r.client.Set(ctx, stockKey(productID), quantity, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key, token string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, token, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key, token string) error {
	return releaseLockScript.Run(ctx, r.client, []string{key}, token).Err()
}

func (r *RedisAdapter) RecordFailedAttempt(ctx context.Context, reference string) (int, error) {
	n, err := recordAttemptScript.Run(ctx, r.client, []string{attemptsKey(reference)}, int(attemptsTTL.Seconds())).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RedisAdapter) FailedAttempts(ctx context.Context, reference string) (int, error) {
	n, err := r.client.Get(ctx, attemptsKey(reference)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}

func attemptsKey(reference string) string {
	return attemptsKeyPrefix + reference
}
