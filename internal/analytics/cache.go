package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "dashboard:version"
	snapshotPrefix  = "dashboard:snapshot"
	// RefreshChannel receives the new version after every publication.
	RefreshChannel = "dashboard.refresh"
)

// ErrNoSnapshot is returned when nothing has been published yet.
var ErrNoSnapshot = errors.New("analytics: no published snapshot")

// Cache publishes snapshots to Redis with versioning controls.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the version of the last published snapshot, 0 when
// nothing has been published.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read version: %w", err)
	}
	return ver, nil
}

// BuildKey composes a key with the given version.
func BuildKey(version int64, parts ...string) string {
	joined := strings.Join(parts, ":")
	return fmt.Sprintf("%s:%d", joined, version)
}

// Publish stores the snapshot under the next version and the latest key,
// then announces the version on RefreshChannel. It returns the versioned key.
func (c *Cache) Publish(ctx context.Context, payload []byte) (string, error) {
	if c == nil || c.client == nil {
		return "", nil
	}
	if !json.Valid(payload) {
		return "", errors.New("cache: payload is not JSON")
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return "", fmt.Errorf("cache: bump version: %w", err)
	}
	key := BuildKey(ver, snapshotPrefix)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, c.ttl)
	pipe.Set(ctx, snapshotPrefix+":latest", payload, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("cache: store snapshot: %w", err)
	}
	if err := c.client.Publish(ctx, RefreshChannel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return "", fmt.Errorf("cache: publish: %w", err)
	}
	return key, nil
}

// Latest decodes the most recently published snapshot into dest.
func (c *Cache) Latest(ctx context.Context, dest interface{}) error {
	if c == nil || c.client == nil {
		return ErrNoSnapshot
	}
	payload, err := c.client.Get(ctx, snapshotPrefix+":latest").Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNoSnapshot
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}
