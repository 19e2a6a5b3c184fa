package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend using Redis for shared storage.
// This backend is suitable for deployments where multiple replicas point
// at the same ledger: HIncrBy and HIncrByFloat are atomic inside the
// Redis server, so concurrent increments from separate processes cannot
// lose updates.
//
// Bucket records expire via TTL rather than explicit cleanup.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	// Addr is the Redis server address ("host:port").
	Addr string

	// Password is the Redis password, empty for no auth.
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix namespaces all keys written by this backend.
	// Default: "creditguard"
	KeyPrefix string

	// TTL is how long bucket records live after their last increment.
	// Default: 48 hours
	TTL time.Duration
}

// NewRedisBackend creates a new Redis storage backend and verifies
// connectivity with a ping.
func NewRedisBackend(ctx context.Context, cfg RedisBackendConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "creditguard"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 48 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisBackend{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

// Increment atomically adds the delta to the record for key.
func (r *RedisBackend) Increment(ctx context.Context, key string, delta Delta) (*BucketRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("bucket key cannot be empty")
	}

	redisKey := r.bucketKey(key)

	pipe := r.client.TxPipeline()
	reqCmd := pipe.HIncrBy(ctx, redisKey, "requests", delta.Requests)
	tokCmd := pipe.HIncrBy(ctx, redisKey, "tokens", delta.Tokens)
	costCmd := pipe.HIncrByFloat(ctx, redisKey, "cost_usd", delta.CostUSD)
	pipe.Expire(ctx, redisKey, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to increment bucket: %w", err)
	}

	now := time.Now()
	return &BucketRecord{
		Key:       key,
		Requests:  reqCmd.Val(),
		Tokens:    tokCmd.Val(),
		CostUSD:   costCmd.Val(),
		UpdatedAt: now,
	}, nil
}

// Get retrieves the record for key.
func (r *RedisBackend) Get(ctx context.Context, key string) (*BucketRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("bucket key cannot be empty")
	}

	fields, err := r.client.HGetAll(ctx, r.bucketKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load bucket: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record := &BucketRecord{Key: key}
	if record.Requests, err = parseIntField(fields, "requests"); err != nil {
		return nil, fmt.Errorf("corrupt bucket record %q: %w", key, err)
	}
	if record.Tokens, err = parseIntField(fields, "tokens"); err != nil {
		return nil, fmt.Errorf("corrupt bucket record %q: %w", key, err)
	}
	if record.CostUSD, err = parseFloatField(fields, "cost_usd"); err != nil {
		return nil, fmt.Errorf("corrupt bucket record %q: %w", key, err)
	}

	return record, nil
}

// SaveBreaker persists circuit breaker state.
func (r *RedisBackend) SaveBreaker(ctx context.Context, state *BreakerRecord) error {
	if state == nil {
		return fmt.Errorf("breaker state cannot be nil")
	}

	active := "0"
	if state.Active {
		active = "1"
	}

	err := r.client.HSet(ctx, r.breakerKey(), map[string]interface{}{
		"active":      active,
		"reason":      state.Reason,
		"tripped_at":  state.TrippedAt.UnixNano(),
		"cooldown_ns": int64(state.Cooldown),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to save breaker state: %w", err)
	}

	return nil
}

// LoadBreaker retrieves the persisted breaker state.
func (r *RedisBackend) LoadBreaker(ctx context.Context) (*BreakerRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.breakerKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load breaker state: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	trippedAt, err := parseIntField(fields, "tripped_at")
	if err != nil {
		return nil, fmt.Errorf("corrupt breaker record: %w", err)
	}
	cooldownNS, err := parseIntField(fields, "cooldown_ns")
	if err != nil {
		return nil, fmt.Errorf("corrupt breaker record: %w", err)
	}

	return &BreakerRecord{
		Active:    fields["active"] == "1",
		Reason:    fields["reason"],
		TrippedAt: time.Unix(0, trippedAt),
		Cooldown:  time.Duration(cooldownNS),
	}, nil
}

// Cleanup is a no-op for the Redis backend: bucket records carry a TTL
// and expire on their own.
func (r *RedisBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// Close releases the Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// parseIntField reads an integer hash field. A missing field is zero; a
// field that doesn't parse is an error, so a mangled record surfaces
// instead of silently reading as zero usage.
func parseIntField(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return n, nil
}

// parseFloatField reads a float hash field with the same rules as
// parseIntField.
func parseFloatField(fields map[string]string, name string) (float64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return f, nil
}

// bucketKey builds the namespaced Redis key for a bucket record.
func (r *RedisBackend) bucketKey(key string) string {
	return fmt.Sprintf("%s:bucket:%s", r.keyPrefix, key)
}

// breakerKey builds the namespaced Redis key for the breaker record.
func (r *RedisBackend) breakerKey() string {
	return fmt.Sprintf("%s:breaker", r.keyPrefix)
}
