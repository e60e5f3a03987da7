package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// 统一的进度事件协议（通过 Redis Pub/Sub 转发给前端 WebSocket）。
// 字段名与前端解析保持一致；同一 campaign 的事件按发布顺序送达，
// at-most-once，不为晚到的订阅者补发历史事件。

// Topic 返回指定 campaign 的广播频道名。
// 发布端与订阅端都必须用这个函数，避免各处手拼字符串漂移。
func Topic(campaignID uint) string {
	return fmt.Sprintf("ad_generation_%d", campaignID)
}

// EventType 标识事件种类。
type EventType string

const (
	EventProgress           EventType = "progress"
	EventBackgroundComplete EventType = "background_complete"
	EventVariantUpdate      EventType = "variant_update"
	EventCompletion         EventType = "completion"
	EventError              EventType = "error"
)

// BackgroundVariantInfo 描述一个背景档位的生成结果。
type BackgroundVariantInfo struct {
	Aspect   string `json:"aspect"`
	Size     string `json:"size"`
	ImageURL string `json:"image_url"`
}

// VariantInfo 描述一条已生成广告的摘要。
type VariantInfo struct {
	VariantID    string `json:"variant_id"`
	Headline     string `json:"headline"`
	Subheadline  string `json:"subheadline"`
	CallToAction string `json:"call_to_action"`
	AdSize       string `json:"ad_size"`
	ImageURL     string `json:"image_url"`
	Status       string `json:"status"`
	IsLocked     bool   `json:"is_locked"`
}

type progressEvent struct {
	Type       EventType `json:"type"`
	Message    string    `json:"message"`
	Percentage int       `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

type backgroundCompleteEvent struct {
	Type               EventType               `json:"type"`
	BackgroundVariants []BackgroundVariantInfo `json:"background_variants"`
	Timestamp          time.Time               `json:"timestamp"`
}

type variantUpdateEvent struct {
	Type      EventType   `json:"type"`
	Variant   VariantInfo `json:"variant"`
	Timestamp time.Time   `json:"timestamp"`
}

type completionEvent struct {
	Type      EventType     `json:"type"`
	Variants  []VariantInfo `json:"variants"`
	Timestamp time.Time     `json:"timestamp"`
}

type errorEvent struct {
	Type      EventType `json:"type"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// publisher 抽象 Redis 的发布能力，便于测试注入。
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Broadcaster 把类型化事件发布到 campaign 专属频道。
// 发布失败只记日志不反馈给调用方：进度通知是尽力而为的旁路，
// 不应该拖垮生成流水线本身。
type Broadcaster struct {
	client publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewBroadcaster 构造 Broadcaster。
func NewBroadcaster(client *redis.Client, logger *slog.Logger) *Broadcaster {
	return newBroadcaster(client, logger)
}

func newBroadcaster(client publisher, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{client: client, logger: logger, now: time.Now}
}

// Progress 发布一条进度事件，percentage 约定在 [0,100] 内单调不减。
func (b *Broadcaster) Progress(ctx context.Context, campaignID uint, message string, percentage int) {
	b.publish(ctx, campaignID, progressEvent{
		Type:       EventProgress,
		Message:    message,
		Percentage: percentage,
		Timestamp:  b.now(),
	})
}

// BackgroundComplete 发布三个背景档位全部就绪的事件。
func (b *Broadcaster) BackgroundComplete(ctx context.Context, campaignID uint, variants []BackgroundVariantInfo) {
	b.publish(ctx, campaignID, backgroundCompleteEvent{
		Type:               EventBackgroundComplete,
		BackgroundVariants: variants,
		Timestamp:          b.now(),
	})
}

// VariantUpdate 发布单条广告状态变化的事件。
func (b *Broadcaster) VariantUpdate(ctx context.Context, campaignID uint, variant VariantInfo) {
	b.publish(ctx, campaignID, variantUpdateEvent{
		Type:      EventVariantUpdate,
		Variant:   variant,
		Timestamp: b.now(),
	})
}

// Completion 发布整次生成完成的事件。
func (b *Broadcaster) Completion(ctx context.Context, campaignID uint, variants []VariantInfo) {
	b.publish(ctx, campaignID, completionEvent{
		Type:      EventCompletion,
		Variants:  variants,
		Timestamp: b.now(),
	})
}

// Error 发布失败事件。编排器约定：先广播再向上抛错，
// 订阅中的客户端不会在失败时被晾着。
func (b *Broadcaster) Error(ctx context.Context, campaignID uint, message string) {
	b.publish(ctx, campaignID, errorEvent{
		Type:      EventError,
		Error:     message,
		Timestamp: b.now(),
	})
}

func (b *Broadcaster) publish(ctx context.Context, campaignID uint, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("marshal broadcast event failed",
			slog.Uint64("campaign_id", uint64(campaignID)),
			slog.Any("error", err),
		)
		return
	}
	channel := Topic(campaignID)
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("publish broadcast event failed",
			slog.String("channel", channel),
			slog.Any("error", err),
		)
	}
}
