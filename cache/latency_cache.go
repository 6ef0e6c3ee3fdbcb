package cache

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	latencyKey = "syncfm:latency:%s" // String: 每个服务器上次会话结束时的延迟（秒）
	latencyTTL = 7 * 24 * time.Hour
)

// LatencyCache remembers the latency the last session against a server ended
// with. Sessions never start from it; `syncfm redis` reports it.
type LatencyCache struct {
	client *redis.Client
}

// NewLatencyCache 创建延迟缓存
func NewLatencyCache(client *redis.Client) *LatencyCache {
	return &LatencyCache{client: client}
}

// LatencyKey returns the redis key for a server URL; only the host matters.
func LatencyKey(serverURL string) string {
	host := serverURL
	if u, err := url.Parse(serverURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf(latencyKey, host)
}

// Load returns the stored latency for serverURL. ok is false when nothing
// has been stored yet.
func (c *LatencyCache) Load(ctx context.Context, serverURL string) (float64, bool, error) {
	if c.client == nil {
		return 0, false, fmt.Errorf("Redis client not initialized")
	}
	val, err := c.client.Get(ctx, LatencyKey(serverURL)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get latency: %w", err)
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid stored latency %q: %w", val, err)
	}
	return v, true, nil
}

// Save stores the latency for serverURL.
func (c *LatencyCache) Save(ctx context.Context, serverURL string, seconds float64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	val := strconv.FormatFloat(seconds, 'f', -1, 64)
	if err := c.client.Set(ctx, LatencyKey(serverURL), val, latencyTTL).Err(); err != nil {
		return fmt.Errorf("failed to save latency: %w", err)
	}
	return nil
}
