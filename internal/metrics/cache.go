package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okamel/market-seasonality/internal/config"
	"github.com/okamel/market-seasonality/internal/models"
	"github.com/okamel/market-seasonality/pkg/logger"
)

// RowCache caches computed series rows keyed by symbol, range and
// window configuration, so switching back to an unchanged visible range
// does not recompute. The cache is best-effort: failures are logged and
// treated as misses, never surfaced to the caller.
type RowCache interface {
	Get(ctx context.Context, key string) ([]models.SeriesRow, bool)
	Set(ctx context.Context, key string, rows []models.SeriesRow)
}

// CacheKey builds the row-cache key for one computation
func CacheKey(symbol string, start, end time.Time, c *Calculator) string {
	return fmt.Sprintf("rows:%s:%s:%s:w%d-%d-%d-%d",
		symbol,
		start.Format(models.ISODate),
		end.Format(models.ISODate),
		c.volWindow, c.maShort, c.maLong, c.rsiPeriod,
	)
}

// MemoryRowCache is the in-process RowCache implementation
type MemoryRowCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	rows    []models.SeriesRow
	expires time.Time
}

// NewMemoryRowCache creates an in-memory row cache with the given TTL
func NewMemoryRowCache(ttl time.Duration) *MemoryRowCache {
	return &MemoryRowCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the cached rows for key, if present and not expired
func (c *MemoryRowCache) Get(_ context.Context, key string) ([]models.SeriesRow, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		logger.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	logger.CacheRequestsTotal.WithLabelValues("hit").Inc()
	rows := make([]models.SeriesRow, len(entry.rows))
	copy(rows, entry.rows)
	return rows, true
}

// Set stores rows under key
func (c *MemoryRowCache) Set(_ context.Context, key string, rows []models.SeriesRow) {
	stored := make([]models.SeriesRow, len(rows))
	copy(stored, rows)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{rows: stored, expires: time.Now().Add(c.ttl)}
}

// RedisRowCache is the Redis-backed RowCache implementation
type RedisRowCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRowCache creates a Redis row cache and verifies the connection
func NewRedisRowCache(cfg config.CacheConfig) (*RedisRowCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis row cache",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
	)

	return &RedisRowCache{client: rdb, ttl: cfg.TTL}, nil
}

// Get returns the cached rows for key, if present
func (c *RedisRowCache) Get(ctx context.Context, key string) ([]models.SeriesRow, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Row cache read failed", logger.ErrorField(err), logger.String("key", key))
		}
		logger.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var rows []models.SeriesRow
	if err := json.Unmarshal(data, &rows); err != nil {
		logger.Warn("Row cache entry corrupt", logger.ErrorField(err), logger.String("key", key))
		logger.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	logger.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return rows, true
}

// Set stores rows under key with the configured TTL
func (c *RedisRowCache) Set(ctx context.Context, key string, rows []models.SeriesRow) {
	data, err := json.Marshal(rows)
	if err != nil {
		logger.Warn("Row cache marshal failed", logger.ErrorField(err), logger.String("key", key))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Row cache write failed", logger.ErrorField(err), logger.String("key", key))
	}
}

// Close releases the Redis connection
func (c *RedisRowCache) Close() error {
	return c.client.Close()
}
