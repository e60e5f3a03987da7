package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"adsmith/internal/compositor"
	"adsmith/internal/database"
	"adsmith/internal/layout"
	"adsmith/internal/tasks"
)

// CompositeFailedError 表示某一条广告的合成失败。
// 只影响这一条广告：不置锁、不碰兄弟广告、不改 campaign 状态。
type CompositeFailedError struct {
	AdID uint
	Err  error
}

func (e *CompositeFailedError) Error() string {
	return fmt.Sprintf("composite failed for ad %d: %v", e.AdID, e.Err)
}

func (e *CompositeFailedError) Unwrap() error { return e.Err }

// CompositeHandler 消费单条广告的最终合成任务。
// 合成不可在同一条广告上并发执行（IsLocked/最终图的写入不幂等），
// API 端入队前已按广告加锁，这里负责释放。
type CompositeHandler struct {
	db       *gorm.DB
	store    ObjectStore
	notifier Notifier
	locks    LockReleaser
	logger   *slog.Logger
}

// NewCompositeHandler 创建任务处理器。
func NewCompositeHandler(
	db *gorm.DB,
	store ObjectStore,
	notifier Notifier,
	locks LockReleaser,
	logger *slog.Logger,
) *CompositeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompositeHandler{
		db:       db,
		store:    store,
		notifier: notifier,
		locks:    locks,
		logger:   logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *CompositeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.AdCompositePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal composite payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("ad_id", uint64(payload.AdID)),
	)
	log.Info("Starting ad composition...")

	defer func() {
		if h.locks != nil {
			if err := h.locks.Del(context.WithoutCancel(ctx), tasks.CompositeLockKey(payload.AdID)).Err(); err != nil {
				log.Error("release composite lock failed", slog.Any("error", err))
			}
		}
	}()

	var ad database.GeneratedAd
	if err := h.db.WithContext(ctx).First(&ad, payload.AdID).Error; err != nil {
		log.Error("query generated ad failed", slog.Any("error", err))
		return err
	}

	if err := h.Composite(ctx, &ad); err != nil {
		h.notifier.Error(ctx, ad.CampaignID, err.Error())
		log.Error("ad composition failed", slog.Any("error", err))
		return err
	}

	h.notifier.VariantUpdate(ctx, ad.CampaignID, adSummary(ctx, h.store, ad))
	log.Info("Ad composition completed successfully.")
	return nil
}

// Composite 渲染并持久化一条广告的最终图，成功后置 IsLocked。
// 任何失败都包装成 CompositeFailedError 返回，广告保持未锁定。
func (h *CompositeHandler) Composite(ctx context.Context, ad *database.GeneratedAd) error {
	run := func() error {
		if ad.BackgroundObjectKey == "" {
			return fmt.Errorf("ad has no background image")
		}

		background, err := h.store.ReadObject(ctx, ad.BackgroundObjectKey)
		if err != nil {
			return fmt.Errorf("load background: %w", err)
		}

		logo, err := h.loadBusinessLogo(ctx, ad.CampaignID)
		if err != nil {
			return err
		}

		var positions layout.PositionSet
		if len(ad.ElementPositions) > 0 {
			if err := json.Unmarshal(ad.ElementPositions, &positions); err != nil {
				return fmt.Errorf("decode element positions: %w", err)
			}
		} else {
			positions = layout.DefaultPositions(layout.AdSize(ad.AdSize))
		}

		rendered, err := compositor.Render(compositor.Input{
			AdSize:       layout.AdSize(ad.AdSize),
			Positions:    positions,
			Headline:     ad.Headline,
			Subheadline:  ad.Subheadline,
			CallToAction: ad.CallToAction,
			Background:   background,
			Logo:         logo,
		})
		if err != nil {
			return err
		}

		objectKey := fmt.Sprintf("generated-ads/%d/final_%d_%s.png", ad.CampaignID, ad.ID, ad.AdSize)
		if _, err := h.store.UploadFile(ctx, objectKey, bytes.NewReader(rendered), int64(len(rendered)), "image/png"); err != nil {
			return fmt.Errorf("store final image: %w", err)
		}

		if err := h.db.WithContext(ctx).Model(ad).Updates(map[string]any{
			"final_object_key": objectKey,
			"is_locked":        true,
		}).Error; err != nil {
			return fmt.Errorf("lock generated ad: %w", err)
		}
		ad.FinalObjectKey = objectKey
		ad.IsLocked = true
		return nil
	}

	if err := run(); err != nil {
		return &CompositeFailedError{AdID: ad.ID, Err: err}
	}
	return nil
}

// loadBusinessLogo 读取商家 logo，未上传时返回 nil（渲染时跳过 logo 元素）。
func (h *CompositeHandler) loadBusinessLogo(ctx context.Context, campaignID uint) ([]byte, error) {
	var campaign database.Campaign
	if err := h.db.WithContext(ctx).Preload("Business").First(&campaign, campaignID).Error; err != nil {
		return nil, fmt.Errorf("query campaign for logo: %w", err)
	}
	if campaign.Business.LogoObjectKey == "" {
		return nil, nil
	}
	logo, err := h.store.ReadObject(ctx, campaign.Business.LogoObjectKey)
	if err != nil {
		return nil, fmt.Errorf("load business logo: %w", err)
	}
	return logo, nil
}
