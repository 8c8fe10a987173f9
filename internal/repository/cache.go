package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardsmith/cardsmith-server-go/internal/config"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// DefaultStateTTL applies when no TTL is configured.
const DefaultStateTTL = time.Hour

// SnapshotCache keeps the latest public table of every session in Redis under
// cardsmith:session:<id>:state.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache dials lazily; call Ping to check the connection.
func NewSnapshotCache(cfg config.RedisConfig) *SnapshotCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return NewSnapshotCacheFromClient(client, cfg.StateTTL)
}

// NewSnapshotCacheFromClient wraps an existing client.
func NewSnapshotCacheFromClient(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func stateKey(sessionID string) string {
	return "cardsmith:session:" + sessionID + ":state"
}

// Put replaces the cached view of a session and renews its TTL.
func (c *SnapshotCache) Put(ctx context.Context, sessionID string, view *engine.View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	return c.client.Set(ctx, stateKey(sessionID), data, c.ttl).Err()
}

// Get returns the cached view of a session.
func (c *SnapshotCache) Get(ctx context.Context, sessionID string) (*engine.View, error) {
	data, err := c.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	var view engine.View
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal view: %w", err)
	}
	return &view, nil
}

// Delete drops the cached view.
func (c *SnapshotCache) Delete(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, stateKey(sessionID)).Err()
}

// Ping checks connectivity.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
