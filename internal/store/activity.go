package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const activityKeyPrefix = "xray:device:last-seen:"

// DeviceActivity tracks when each device last produced a persisted signal.
// Purely operational data: losing it never affects the signal store.
type DeviceActivity interface {
	Touch(ctx context.Context, deviceID string, seen time.Time) error
	LastSeen(ctx context.Context) (map[string]time.Time, error)
}

// RedisDeviceActivity DeviceActivity backed by redis string keys.
type RedisDeviceActivity struct {
	c   *redis.Client
	ttl time.Duration
}

func NewRedisDeviceActivity(c *redis.Client, ttl time.Duration) *RedisDeviceActivity {
	return &RedisDeviceActivity{c: c, ttl: ttl}
}

var _ DeviceActivity = (*RedisDeviceActivity)(nil)

func (r *RedisDeviceActivity) Touch(ctx context.Context, deviceID string, seen time.Time) error {
	key := activityKeyPrefix + deviceID
	if err := r.c.Set(ctx, key, seen.UTC().Format(time.RFC3339Nano), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record device activity: %w", err)
	}
	return nil
}

func (r *RedisDeviceActivity) LastSeen(ctx context.Context) (map[string]time.Time, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := r.c.Scan(ctx, cursor, activityKeyPrefix+"*", 200).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan device activity keys: %w", err)
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	out := make(map[string]time.Time, len(keys))
	for _, key := range keys {
		val, err := r.c.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read device activity: %w", err)
		}
		seen, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(key, activityKeyPrefix)] = seen
	}
	return out, nil
}

// MemoryDeviceActivity in-memory DeviceActivity for tests and redis-less runs.
type MemoryDeviceActivity struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

func NewMemoryDeviceActivity() *MemoryDeviceActivity {
	return &MemoryDeviceActivity{seen: make(map[string]time.Time)}
}

var _ DeviceActivity = (*MemoryDeviceActivity)(nil)

func (m *MemoryDeviceActivity) Touch(_ context.Context, deviceID string, seen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[deviceID] = seen
	return nil
}

func (m *MemoryDeviceActivity) LastSeen(_ context.Context) (map[string]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]time.Time, len(m.seen))
	for k, v := range m.seen {
		out[k] = v
	}
	return out, nil
}
