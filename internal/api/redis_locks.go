package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// 单飞锁在入队前抢占：抢不到说明同一资源上已有一次运行在途。
// 释放由 Worker 在任务收尾时完成，TTL 兜底 Worker 崩溃的情况。

type redisLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func acquireLock(ctx context.Context, client redisLocker, key string, ttl time.Duration) (bool, error) {
	return client.SetNX(ctx, key, "1", ttl).Result()
}

func releaseLock(ctx context.Context, client redisLocker, key string) {
	_ = client.Del(ctx, key).Err()
}
