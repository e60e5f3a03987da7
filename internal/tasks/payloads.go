package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeAdGenerate           = "ad:generate"
	TypeBackgroundRegenerate = "ad:regenerate_background"
	TypeAdComposite          = "ad:composite"
)

// AdGeneratePayload 描述一次完整生成运行所需的最小信息。
type AdGeneratePayload struct {
	CampaignID    uint   `json:"campaign_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewAdGenerateTask 构造一次广告生成任务。
// 编排器内部不重试，队列层也不要重试（MaxRetry 0）：
// 失败已经广播给客户端，重放只会产生交错的陈旧事件。
func NewAdGenerateTask(campaignID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AdGeneratePayload{
		CampaignID:    campaignID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAdGenerate, payload, asynq.MaxRetry(0)), nil
}

// BackgroundRegeneratePayload 描述背景重生成任务。
type BackgroundRegeneratePayload struct {
	CampaignID    uint   `json:"campaign_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewBackgroundRegenerateTask 构造背景重生成任务。
func NewBackgroundRegenerateTask(campaignID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BackgroundRegeneratePayload{
		CampaignID:    campaignID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBackgroundRegenerate, payload, asynq.MaxRetry(0)), nil
}

// AdCompositePayload 描述单条广告的最终合成任务。
type AdCompositePayload struct {
	AdID          uint   `json:"ad_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewAdCompositeTask 构造合成任务。合成失败只影响这一条广告，不自动重试。
func NewAdCompositeTask(adID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AdCompositePayload{
		AdID:          adID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAdComposite, payload, asynq.MaxRetry(0)), nil
}
