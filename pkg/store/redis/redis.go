package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/thermonet/pkg/network"
)

const topologiesSet = "thermonet:topologies"

// CachedTopology is a clustered network stored under its input hash.
type CachedTopology struct {
	RunID    string           `json:"run_id"`
	Snapshot network.Snapshot `json:"snapshot"`
	CachedAt time.Time        `json:"cached_at"`
}

// TopologyCache keeps clustered networks keyed by the hash of the input
// that produced them.
type TopologyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTopologyCache creates a cache. A zero ttl keeps entries forever.
func NewTopologyCache(client *redis.Client, ttl time.Duration) *TopologyCache {
	return &TopologyCache{client: client, ttl: ttl}
}

// InputHash returns the hex sha256 of the concatenated inputs.
func InputHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *TopologyCache) makeKey(hash string) string {
	return fmt.Sprintf("thermonet:topology:%s", hash)
}

// Set stores a topology under hash.
func (c *TopologyCache) Set(ctx context.Context, hash string, t CachedTopology) error {
	if t.CachedAt.IsZero() {
		t.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}
	key := c.makeKey(hash)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET key %s: %w", key, err)
	}
	if err := c.client.SAdd(ctx, topologiesSet, key).Err(); err != nil {
		return fmt.Errorf("failed to SADD key %s to set: %w", key, err)
	}
	return nil
}

// Get returns the topology stored under hash. ok is false on a miss.
func (c *TopologyCache) Get(ctx context.Context, hash string) (CachedTopology, bool, error) {
	key := c.makeKey(hash)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedTopology{}, false, nil
		}
		return CachedTopology{}, false, fmt.Errorf("failed to GET key %s: %w", key, err)
	}
	var t CachedTopology
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return CachedTopology{}, false, fmt.Errorf("failed to unmarshal topology from key %s: %w", key, err)
	}
	return t, true, nil
}

// Len returns the number of live entries.
func (c *TopologyCache) Len(ctx context.Context) (int, error) {
	keys, err := c.client.SMembers(ctx, topologiesSet).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to SMEMBERS %s: %w", topologiesSet, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	live, err := c.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to EXISTS keys: %w", err)
	}
	return int(live), nil
}

// Clear removes every cached topology.
func (c *TopologyCache) Clear(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, topologiesSet).Result()
	if err != nil {
		return fmt.Errorf("failed to SMEMBERS %s during clear: %w", topologiesSet, err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to DEL keys: %w", err)
		}
	}
	if err := c.client.Del(ctx, topologiesSet).Err(); err != nil {
		return fmt.Errorf("failed to DEL set %s: %w", topologiesSet, err)
	}
	return nil
}
