package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"SyncFM/logger"

	"github.com/go-redis/redis/v8"
)

const (
	furiganaKeyPrefix = "syncfm:furigana:v1:" // String: 行文本哈希 -> 注音结果
	furiganaTTL       = 30 * 24 * time.Hour
	flushBatch        = 100
)

// FuriganaCache stores annotated lyric lines keyed by the raw line.
type FuriganaCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFuriganaCache 创建注音缓存
func NewFuriganaCache(client *redis.Client) *FuriganaCache {
	return &FuriganaCache{client: client, ttl: furiganaTTL}
}

// FuriganaKey returns the redis key for a raw lyric line.
func FuriganaKey(text string) string {
	sum := sha1.Sum([]byte(text))
	return furiganaKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached annotation. Redis errors count as a miss.
func (c *FuriganaCache) Get(ctx context.Context, text string) (string, bool) {
	if c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, FuriganaKey(text)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("furigana cache get failed", logger.ErrorField(err))
		}
		return "", false
	}
	return val, true
}

// Put stores an annotation; failures are only logged.
func (c *FuriganaCache) Put(ctx context.Context, text, annotated string) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, FuriganaKey(text), annotated, c.ttl).Err(); err != nil {
		logger.Debug("furigana cache put failed", logger.ErrorField(err))
	}
}

// Flush deletes every cached annotation and returns how many keys went.
func (c *FuriganaCache) Flush(ctx context.Context) (int, error) {
	if c.client == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}
	removed := 0
	batch := make([]string, 0, flushBatch)
	del := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("failed to delete furigana keys: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, furiganaKeyPrefix+"*", flushBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == flushBatch {
			if err := del(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan furigana keys: %w", err)
	}
	if err := del(); err != nil {
		return removed, err
	}
	return removed, nil
}
