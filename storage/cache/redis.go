package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/attendance"
)

// RedisStatsCache keeps computed club statistics warm between dashboard
// loads. Values are JSON with a TTL; a submission for a club invalidates all
// of that club's keys so the next read recomputes from the record store.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger core.Logger
}

var _ attendance.StatsCache = (*RedisStatsCache)(nil)

func NewRedisStatsCache(conf *core.Config, logger core.Logger) (*RedisStatsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStatsCache{client: client, ttl: conf.Redis.StatsTTL, logger: logger}, nil
}

func (c *RedisStatsCache) Get(ctx context.Context, key string) (attendance.ClubStatistics, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("stats cache get: " + err.Error())
		}
		return attendance.ClubStatistics{}, false
	}

	var stats attendance.ClubStatistics
	if err = json.Unmarshal(data, &stats); err != nil {
		// stale or corrupt entry; treat as a miss
		c.client.Del(ctx, key)
		return attendance.ClubStatistics{}, false
	}
	return stats, true
}

func (c *RedisStatsCache) Set(ctx context.Context, key string, stats attendance.ClubStatistics) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("stats cache set: " + err.Error())
		return
	}
	if err = c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache set: " + err.Error())
	}
}

// InvalidateClub drops every cached range for a club. Cache failures are
// logged, never surfaced; the record store stays the source of truth.
func (c *RedisStatsCache) InvalidateClub(ctx context.Context, clubID string) {
	pattern := "stats:" + clubID + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("stats cache invalidate: " + err.Error())
	}
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}
