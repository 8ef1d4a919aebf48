package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nidhogg/codsworth/internal/engine"
)

// Cache holds short-lived per-user working copies of the three domains in
// Redis. Values are whole-domain JSON arrays so insertion order survives
// the round trip; the briefing layer merges them over the persisted state
// with the session side winning on name collision.
type Cache struct {
	rdb    *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

const keyPrefix = "codsworth:session:"

// New connects the session cache to Redis.
func New(redisURL string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("Redis connected")
	return &Cache{rdb: rdb, logger: logger, ttl: ttl}, nil
}

func key(userID, domain string) string {
	return keyPrefix + userID + ":" + domain
}

func get[T any](ctx context.Context, c *Cache, userID, domain string) ([]T, error) {
	raw, err := c.rdb.Get(ctx, key(userID, domain)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get %s: %w", domain, err)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", domain, err)
	}
	return out, nil
}

func put[T any](ctx context.Context, c *Cache, userID, domain string, vals []T) error {
	raw, err := json.Marshal(vals)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", domain, err)
	}
	if err := c.rdb.Set(ctx, key(userID, domain), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("session put %s: %w", domain, err)
	}
	return nil
}

// Lists returns the cached lists for a user, nil when the cache is cold.
func (c *Cache) Lists(ctx context.Context, userID string) ([]*engine.List, error) {
	return get[*engine.List](ctx, c, userID, "lists")
}

// PutLists replaces the cached list snapshot for a user.
func (c *Cache) PutLists(ctx context.Context, userID string, lists []*engine.List) error {
	return put(ctx, c, userID, "lists", lists)
}

// UpsertList writes one list into the cached snapshot, replacing an entry
// with the same name in place and appending otherwise.
func (c *Cache) UpsertList(ctx context.Context, userID string, list *engine.List) error {
	lists, err := c.Lists(ctx, userID)
	if err != nil {
		return err
	}
	lists = upsert(lists, list, func(l *engine.List) string { return l.Name })
	return c.PutLists(ctx, userID, lists)
}

// Schedules returns the cached schedules for a user, nil when cold.
func (c *Cache) Schedules(ctx context.Context, userID string) ([]*engine.Schedule, error) {
	return get[*engine.Schedule](ctx, c, userID, "schedules")
}

// PutSchedules replaces the cached schedule snapshot for a user.
func (c *Cache) PutSchedules(ctx context.Context, userID string, schedules []*engine.Schedule) error {
	return put(ctx, c, userID, "schedules", schedules)
}

// UpsertSchedule writes one schedule into the cached snapshot.
func (c *Cache) UpsertSchedule(ctx context.Context, userID string, schedule *engine.Schedule) error {
	schedules, err := c.Schedules(ctx, userID)
	if err != nil {
		return err
	}
	schedules = upsert(schedules, schedule, func(s *engine.Schedule) string { return s.Name })
	return c.PutSchedules(ctx, userID, schedules)
}

// Memory returns the cached memory categories for a user, nil when cold.
func (c *Cache) Memory(ctx context.Context, userID string) ([]*engine.MemoryCategory, error) {
	return get[*engine.MemoryCategory](ctx, c, userID, "memory")
}

// PutMemory replaces the cached memory snapshot for a user.
func (c *Cache) PutMemory(ctx context.Context, userID string, categories []*engine.MemoryCategory) error {
	return put(ctx, c, userID, "memory", categories)
}

// UpsertMemory writes one category into the cached snapshot.
func (c *Cache) UpsertMemory(ctx context.Context, userID string, category *engine.MemoryCategory) error {
	categories, err := c.Memory(ctx, userID)
	if err != nil {
		return err
	}
	categories = upsert(categories, category, func(m *engine.MemoryCategory) string { return m.Name })
	return c.PutMemory(ctx, userID, categories)
}

// Clear drops all cached domains for a user.
func (c *Cache) Clear(ctx context.Context, userID string) error {
	keys := []string{key(userID, "lists"), key(userID, "schedules"), key(userID, "memory")}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func upsert[T any](vals []T, v T, nameOf func(T) string) []T {
	for i := range vals {
		if nameOf(vals[i]) == nameOf(v) {
			vals[i] = v
			return vals
		}
	}
	return append(vals, v)
}
