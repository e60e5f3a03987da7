package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"adsmith/internal/broadcast"
	"adsmith/internal/database"
	"adsmith/internal/genai"
	"adsmith/internal/layout"
	"adsmith/internal/tasks"
)

// GenerateHandler 驱动端到端的广告生成流水线：
// 文案 → 三个背景档位 → 按广告位扇出 GeneratedAd → campaign 置 ready。
// 阶段内顺序执行；任一阶段失败，先广播 error 再向队列边界上抛，
// 不做自动重试，也不回滚已落库的部分产物。
type GenerateHandler struct {
	db       *gorm.DB
	store    ObjectStore
	fetcher  ImageFetcher
	textGen  genai.TextGenerator
	imageGen genai.ImageGenerator
	notifier Notifier
	locks    LockReleaser
	logger   *slog.Logger
	now      func() time.Time
}

// NewGenerateHandler 创建任务处理器。
func NewGenerateHandler(
	db *gorm.DB,
	store ObjectStore,
	imageFetcher ImageFetcher,
	textGen genai.TextGenerator,
	imageGen genai.ImageGenerator,
	notifier Notifier,
	locks LockReleaser,
	logger *slog.Logger,
) *GenerateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateHandler{
		db:       db,
		store:    store,
		fetcher:  imageFetcher,
		textGen:  textGen,
		imageGen: imageGen,
		notifier: notifier,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *GenerateHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.AdGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal generate payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("campaign_id", uint64(payload.CampaignID)),
	)
	log.Info("Starting ad generation run...")

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

	if err := h.run(ctx, &campaign, log); err != nil {
		// 失败先广播再上抛，订阅端不会被晾着等一个永远不来的事件。
		h.notifier.Error(ctx, campaign.ID, err.Error())
		log.Error("ad generation run failed", slog.Any("error", err))
		return err
	}

	log.Info("Ad generation run completed successfully.")
	return nil
}

func (h *GenerateHandler) run(ctx context.Context, campaign *database.Campaign, log *slog.Logger) error {
	h.notifier.Progress(ctx, campaign.ID, "Starting ad generation...", broadcast.StageCopy.Start)

	input := campaignInput(campaign)

	variant, err := h.generateCopy(ctx, input)
	if err != nil {
		return err
	}
	log.Info("ad copy generated", slog.String("variant_id", variant.VariantID))

	h.notifier.Progress(ctx, campaign.ID, "Generating background images...", broadcast.StageBackgrounds.Start)

	variantInfos, err := h.generateBackgrounds(ctx, campaign, input)
	if err != nil {
		return err
	}
	h.notifier.BackgroundComplete(ctx, campaign.ID, variantInfos)

	if err := h.fanOutAds(ctx, campaign, variant); err != nil {
		return err
	}

	if err := h.db.WithContext(ctx).Model(campaign).
		Update("status", database.CampaignStatusReady).Error; err != nil {
		return fmt.Errorf("promote campaign to ready: %w", err)
	}

	summaries, err := h.adSummaries(ctx, campaign.ID)
	if err != nil {
		return err
	}
	h.notifier.Progress(ctx, campaign.ID, "Ad generation completed!", broadcast.StageFinalize.End)
	h.notifier.Completion(ctx, campaign.ID, summaries)
	return nil
}

// generateCopy 调用文本协作方一次，只保留首个 variant：
// 同一套文案会被所有广告位共享。
func (h *GenerateHandler) generateCopy(ctx context.Context, input genai.CampaignInput) (genai.AdVariant, error) {
	prompt, err := genai.BuildTextPrompt(input)
	if err != nil {
		return genai.AdVariant{}, err
	}

	response, err := h.textGen.GenerateText(ctx, genai.SystemPrompt(), prompt)
	if err != nil {
		return genai.AdVariant{}, err
	}

	variants, err := genai.ParseAdVariants(response)
	if err != nil {
		return genai.AdVariant{}, err
	}
	return variants[0], nil
}

// generateBackgrounds 依次生成三个档位。任一档位失败整次运行失败，
// 不留半套背景。
func (h *GenerateHandler) generateBackgrounds(ctx context.Context, campaign *database.Campaign, input genai.CampaignInput) ([]broadcast.BackgroundVariantInfo, error) {
	infos := make([]broadcast.BackgroundVariantInfo, 0, len(genai.BackgroundAspectConfigs))

	for _, cfg := range genai.BackgroundAspectConfigs {
		prompt, err := genai.BuildBackgroundPrompt(cfg, input)
		if err != nil {
			return nil, err
		}

		imageURL, err := h.imageGen.GenerateImage(ctx, prompt, cfg.Size)
		if err != nil {
			return nil, fmt.Errorf("generate %s background: %w", cfg.Aspect, err)
		}

		data, _, err := h.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			return nil, fmt.Errorf("download %s background: %w", cfg.Aspect, err)
		}

		objectKey := fmt.Sprintf("backgrounds/%d/%s_background_%d.png", campaign.ID, cfg.Aspect, h.now().Unix())
		if _, err := h.store.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
			return nil, fmt.Errorf("store %s background: %w", cfg.Aspect, err)
		}

		if err := h.upsertBackgroundVariant(ctx, campaign.ID, cfg, objectKey); err != nil {
			return nil, err
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

	return infos, nil
}

// upsertBackgroundVariant 原地覆盖 (campaign, aspect) 对应的行，
// 旧图对象先清理；唯一索引保证并发下也不会出现重复档位。
func (h *GenerateHandler) upsertBackgroundVariant(ctx context.Context, campaignID uint, cfg genai.AspectConfig, objectKey string) error {
	return upsertBackgroundVariant(ctx, h.db, h.store, campaignID, cfg, objectKey)
}

func upsertBackgroundVariant(ctx context.Context, db *gorm.DB, store ObjectStore, campaignID uint, cfg genai.AspectConfig, objectKey string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.BackgroundVariant
		err := tx.Where("campaign_id = ? AND aspect = ?", campaignID, cfg.Aspect).First(&existing).Error
		switch {
		case err == nil:
			oldKey := existing.ImageObjectKey
			existing.Size = cfg.Size
			existing.ImageObjectKey = objectKey
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("update background variant %s: %w", cfg.Aspect, err)
			}
			if oldKey != "" && oldKey != objectKey {
				if err := store.DeleteObject(ctx, oldKey); err != nil {
					// 清理失败不阻断流水线，留给对象生命周期策略兜底。
					slog.Default().Warn("purge old background object failed",
						slog.String("object_key", oldKey),
						slog.Any("error", err),
					)
				}
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			variant := database.BackgroundVariant{
				CampaignID:     campaignID,
				Aspect:         cfg.Aspect,
				Size:           cfg.Size,
				ImageObjectKey: objectKey,
			}
			if err := tx.Create(&variant).Error; err != nil {
				return fmt.Errorf("create background variant %s: %w", cfg.Aspect, err)
			}
			return nil
		default:
			return fmt.Errorf("query background variant %s: %w", cfg.Aspect, err)
		}
	})
}

// fanOutAds 按 campaign 配置的顺序为每个广告位落一条 GeneratedAd，
// 共享同一套文案，背景按固定的尺寸→档位规则挑选。
func (h *GenerateHandler) fanOutAds(ctx context.Context, campaign *database.Campaign, variant genai.AdVariant) error {
	adSizes := stringArray(campaign.AdSizes)
	if len(adSizes) == 0 {
		return fmt.Errorf("campaign %d has no ad sizes configured", campaign.ID)
	}

	var backgrounds []database.BackgroundVariant
	if err := h.db.WithContext(ctx).
		Where("campaign_id = ?", campaign.ID).
		Find(&backgrounds).Error; err != nil {
		return fmt.Errorf("load background variants: %w", err)
	}

	for i, size := range adSizes {
		background := chooseBackgroundVariant(backgrounds, layout.AdSize(size))
		if background == nil {
			return fmt.Errorf("no background variant available for size %s", size)
		}

		positions, err := json.Marshal(layout.DefaultPositions(layout.AdSize(size)))
		if err != nil {
			return fmt.Errorf("marshal default positions for %s: %w", size, err)
		}

		ad := database.GeneratedAd{
			CampaignID:          campaign.ID,
			VariantID:           variant.VariantID,
			AdSize:              size,
			Headline:            variant.Headline,
			Subheadline:         variant.Subheadline,
			CallToAction:        variant.CallToAction,
			ImagePrompt:         variant.ImagePrompt,
			Reasoning:           variant.Reasoning,
			ElementPositions:    datatypes.JSON(positions),
			BackgroundObjectKey: background.ImageObjectKey,
			IsLocked:            false,
			Status:              database.AdStatusCompleted,
		}
		if err := h.db.WithContext(ctx).Create(&ad).Error; err != nil {
			return fmt.Errorf("create generated ad for %s: %w", size, err)
		}

		h.notifier.Progress(ctx, campaign.ID,
			fmt.Sprintf("Creating ad for %s...", size),
			broadcast.StageFanOut.At(i+1, len(adSizes)),
		)
	}

	return nil
}

// chooseBackgroundVariant 按尺寸选档位，首选档位缺失时退回任何一个已有档位。
func chooseBackgroundVariant(variants []database.BackgroundVariant, size layout.AdSize) *database.BackgroundVariant {
	preferred := layout.AspectFor(size)
	for i := range variants {
		if variants[i].Aspect == string(preferred) {
			return &variants[i]
		}
	}
	if len(variants) > 0 {
		return &variants[0]
	}
	return nil
}

// adSummaries 取当前落库的广告摘要用于 completion 事件。
func (h *GenerateHandler) adSummaries(ctx context.Context, campaignID uint) ([]broadcast.VariantInfo, error) {
	return adSummaries(ctx, h.db, h.store, campaignID)
}

func adSummaries(ctx context.Context, db *gorm.DB, store ObjectStore, campaignID uint) ([]broadcast.VariantInfo, error) {
	var ads []database.GeneratedAd
	if err := db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, database.AdStatusCompleted).
		Order("id").
		Find(&ads).Error; err != nil {
		return nil, fmt.Errorf("load generated ads: %w", err)
	}

	infos := make([]broadcast.VariantInfo, 0, len(ads))
	for _, ad := range ads {
		infos = append(infos, adSummary(ctx, store, ad))
	}
	return infos, nil
}

// adSummary 把一条 GeneratedAd 映射成广播摘要。
// 有最终图用最终图，否则退回背景图。
func adSummary(ctx context.Context, store ObjectStore, ad database.GeneratedAd) broadcast.VariantInfo {
	objectKey := ad.FinalObjectKey
	if objectKey == "" {
		objectKey = ad.BackgroundObjectKey
	}
	imageURL := ""
	if objectKey != "" {
		if url, err := store.GeneratePresignedURL(ctx, objectKey, presignTTL); err == nil {
			imageURL = url
		}
	}
	return broadcast.VariantInfo{
		VariantID:    ad.VariantID,
		Headline:     ad.Headline,
		Subheadline:  ad.Subheadline,
		CallToAction: ad.CallToAction,
		AdSize:       ad.AdSize,
		ImageURL:     imageURL,
		Status:       ad.Status,
		IsLocked:     ad.IsLocked,
	}
}
