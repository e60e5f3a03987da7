package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"adsmith/internal/broadcast"
	"adsmith/internal/database"
	"adsmith/internal/genai"
	"adsmith/internal/layout"
	"adsmith/internal/tasks"
)

// RegenerateHandler 只重跑背景阶段：重生成三个档位、原地覆盖
// BackgroundVariant，并把新背景按尺寸→档位规则重新挂到每条已有的
// GeneratedAd 上。文案与布局一律不动。
type RegenerateHandler struct {
	db       *gorm.DB
	store    ObjectStore
	fetcher  ImageFetcher
	imageGen genai.ImageGenerator
	notifier Notifier
	locks    LockReleaser
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegenerateHandler 创建任务处理器。
func NewRegenerateHandler(
	db *gorm.DB,
	store ObjectStore,
	imageFetcher ImageFetcher,
	imageGen genai.ImageGenerator,
	notifier Notifier,
	locks LockReleaser,
	logger *slog.Logger,
) *RegenerateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegenerateHandler{
		db:       db,
		store:    store,
		fetcher:  imageFetcher,
		imageGen: imageGen,
		notifier: notifier,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *RegenerateHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.BackgroundRegeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal regenerate payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("campaign_id", uint64(payload.CampaignID)),
	)
	log.Info("Starting background regeneration...")

	defer func() {
		if h.locks != nil {
			if err := h.locks.Del(context.WithoutCancel(ctx), tasks.GenerationLockKey(payload.CampaignID)).Err(); err != nil {
				log.Error("release generation lock failed", slog.Any("error", err))
			}
		}
	}()

	var campaign database.Campaign
	if err := h.db.WithContext(ctx).Preload("Business").First(&campaign, payload.CampaignID).Error; err != nil {
		log.Error("query campaign failed", slog.Any("error", err))
		return err
	}

	if err := h.run(ctx, &campaign); err != nil {
		h.notifier.Error(ctx, campaign.ID, fmt.Sprintf("Background regeneration failed: %s", err.Error()))
		log.Error("background regeneration failed", slog.Any("error", err))
		return err
	}

	log.Info("Background regeneration completed successfully.")
	return nil
}

func (h *RegenerateHandler) run(ctx context.Context, campaign *database.Campaign) error {
	h.notifier.Progress(ctx, campaign.ID, "Regenerating background image...", 0)

	input := campaignInput(campaign)
	h.notifier.Progress(ctx, campaign.ID, "Generating new background images...", 50)

	infos := make([]broadcast.BackgroundVariantInfo, 0, len(genai.BackgroundAspectConfigs))
	for _, cfg := range genai.BackgroundAspectConfigs {
		prompt, err := genai.BuildBackgroundPrompt(cfg, input)
		if err != nil {
			return err
		}

		imageURL, err := h.imageGen.GenerateImage(ctx, prompt, cfg.Size)
		if err != nil {
			return fmt.Errorf("generate %s background: %w", cfg.Aspect, err)
		}

		data, _, err := h.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			return fmt.Errorf("download %s background: %w", cfg.Aspect, err)
		}

		objectKey := fmt.Sprintf("backgrounds/%d/%s_background_%d.png", campaign.ID, cfg.Aspect, h.now().Unix())
		if _, err := h.store.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
			return fmt.Errorf("store %s background: %w", cfg.Aspect, err)
		}

		if err := upsertBackgroundVariant(ctx, h.db, h.store, campaign.ID, cfg, objectKey); err != nil {
			return err
		}

		publicURL, err := h.store.GeneratePresignedURL(ctx, objectKey, presignTTL)
		if err != nil {
			publicURL = ""
		}
		infos = append(infos, broadcast.BackgroundVariantInfo{
			Aspect:   cfg.Aspect,
			Size:     cfg.Size,
			ImageURL: publicURL,
		})
	}

	if err := h.reattachBackgrounds(ctx, campaign.ID); err != nil {
		return err
	}

	h.notifier.BackgroundComplete(ctx, campaign.ID, infos)
	return nil
}

// reattachBackgrounds 把每条已有广告的背景引用换成新生成的档位图。
// 只动 BackgroundObjectKey，文案与 element_positions 保持原样。
func (h *RegenerateHandler) reattachBackgrounds(ctx context.Context, campaignID uint) error {
	var backgrounds []database.BackgroundVariant
	if err := h.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Find(&backgrounds).Error; err != nil {
		return fmt.Errorf("load background variants: %w", err)
	}

	var ads []database.GeneratedAd
	if err := h.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Find(&ads).Error; err != nil {
		return fmt.Errorf("load generated ads: %w", err)
	}

	for i := range ads {
		background := chooseBackgroundVariant(backgrounds, layout.AdSize(ads[i].AdSize))
		if background == nil {
			continue
		}
		if err := h.db.WithContext(ctx).Model(&ads[i]).
			Update("background_object_key", background.ImageObjectKey).Error; err != nil {
			return fmt.Errorf("reattach background for ad %d: %w", ads[i].ID, err)
		}
	}
	return nil
}
