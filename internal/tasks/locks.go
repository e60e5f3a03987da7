package tasks

import (
	"fmt"
	"time"
)

// 单飞锁：同一 campaign 同时至多一次生成运行，同一广告同时至多一次合成。
// 广播协议里没有运行标识，两次运行交错会让订阅者收到无法区分的陈旧事件，
// 所以 API 端入队前用 SETNX 抢锁，Worker 结束时释放。
// TTL 是兜底：Worker 崩溃没释放时锁自动过期。

const (
	GenerationLockTTL = 15 * time.Minute
	CompositeLockTTL  = 5 * time.Minute
)

// GenerationLockKey 返回 campaign 级生成锁的键。
func GenerationLockKey(campaignID uint) string {
	return fmt.Sprintf("ad_generation_lock:%d", campaignID)
}

// CompositeLockKey 返回广告级合成锁的键。
func CompositeLockKey(adID uint) string {
	return fmt.Sprintf("ad_composite_lock:%d", adID)
}
