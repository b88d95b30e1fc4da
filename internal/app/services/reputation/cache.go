package reputation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/helphub/platform/internal/app/domain/stats"
	"github.com/helphub/platform/pkg/logger"
)

// LeaderboardCache caches the computed top-helpers list. It is never a
// source of truth: any miss or error falls through to recomputation from
// persisted rows.
type LeaderboardCache interface {
	Get(ctx context.Context) ([]stats.TopHelper, bool)
	Set(ctx context.Context, helpers []stats.TopHelper)
	Invalidate(ctx context.Context)
}

const (
	leaderboardKey = "helphub:reputation:top_helpers"
	leaderboardTTL = 60 * time.Second
)

// RedisLeaderboard caches the leaderboard in redis with a short TTL.
type RedisLeaderboard struct {
	client *redis.Client
	log    *logger.Logger
}

var _ LeaderboardCache = (*RedisLeaderboard)(nil)

// NewRedisLeaderboard wraps a redis client as a leaderboard cache.
func NewRedisLeaderboard(client *redis.Client, log *logger.Logger) *RedisLeaderboard {
	if log == nil {
		log = logger.NewDefault("leaderboard-cache")
	}
	return &RedisLeaderboard{client: client, log: log}
}

func (c *RedisLeaderboard) Get(ctx context.Context) ([]stats.TopHelper, bool) {
	data, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("leaderboard cache read failed")
		return nil, false
	}

	var helpers []stats.TopHelper
	if err := json.Unmarshal(data, &helpers); err != nil {
		c.log.WithError(err).Warn("leaderboard cache entry malformed")
		return nil, false
	}
	return helpers, true
}

func (c *RedisLeaderboard) Set(ctx context.Context, helpers []stats.TopHelper) {
	data, err := json.Marshal(helpers)
	if err != nil {
		c.log.WithError(err).Warn("leaderboard cache encode failed")
		return
	}
	if err := c.client.Set(ctx, leaderboardKey, data, leaderboardTTL).Err(); err != nil {
		c.log.WithError(err).Warn("leaderboard cache write failed")
	}
}

func (c *RedisLeaderboard) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, leaderboardKey).Err(); err != nil {
		c.log.WithError(err).Warn("leaderboard cache invalidation failed")
	}
}
