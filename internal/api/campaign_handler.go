package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"adsmith/internal/api/middleware"
	"adsmith/internal/broadcast"
	"adsmith/internal/database"
	"adsmith/internal/errcode"
	"adsmith/internal/layout"
	"adsmith/internal/tasks"
)

// taskEnqueuer 抽象任务入队，测试里替换成记录型假件。
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CampaignHandler 维护投放活动并触发生成流水线。
type CampaignHandler struct {
	db          *gorm.DB
	asynqClient taskEnqueuer
	redisClient redisLocker
	storage     objectStore
	logger      *slog.Logger
}

// NewCampaignHandler 构造 CampaignHandler。
func NewCampaignHandler(db *gorm.DB, asynqClient taskEnqueuer, redisClient redisLocker, storageClient objectStore, logger *slog.Logger) *CampaignHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignHandler{
		db:          db,
		asynqClient: asynqClient,
		redisClient: redisClient,
		storage:     storageClient,
		logger:      logger,
	}
}

type createCampaignRequest struct {
	BusinessID uint     `json:"business_id" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Brief      string   `json:"brief" binding:"required"`
	Goals      string   `json:"goals"`
	Audience   string   `json:"audience"`
	Offer      string   `json:"offer"`
	CTA        string   `json:"cta"`
	AdSizes    []string `json:"ad_sizes" binding:"required"`

	BrandColors []string `json:"brand_colors"`
	BrandFonts  string   `json:"brand_fonts"`
	ToneWords   []string `json:"tone_words"`

	InspirationImageCount int `json:"inspiration_image_count"`
}

type campaignResponse struct {
	ID       uint     `json:"id"`
	Name     string   `json:"name"`
	Brief    string   `json:"brief"`
	Goals    string   `json:"goals,omitempty"`
	Audience string   `json:"audience,omitempty"`
	Offer    string   `json:"offer,omitempty"`
	CTA      string   `json:"cta,omitempty"`
	AdSizes  []string `json:"ad_sizes"`
	Status   string   `json:"status"`
	Channel  string   `json:"channel"`
}

// CreateCampaign 创建投放活动，广告位尺寸必须全部可解析。
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, err.Error())
		return
	}
	if len(req.AdSizes) == 0 {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "at least one ad size is required")
		return
	}
	for _, size := range req.AdSizes {
		if _, _, err := layout.AdSize(size).Parse(); err != nil {
			ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	var business database.Business
	if err := h.db.WithContext(ctx).First(&business, req.BusinessID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "business not found")
			return
		}
		Internal(c, "failed to query business")
		return
	}

	sizes, err := json.Marshal(req.AdSizes)
	if err != nil {
		Internal(c, "failed to encode ad sizes")
		return
	}

	campaign := database.Campaign{
		BusinessID:            business.ID,
		Name:                  req.Name,
		Brief:                 req.Brief,
		Goals:                 req.Goals,
		Audience:              req.Audience,
		Offer:                 req.Offer,
		CTA:                   req.CTA,
		AdSizes:               datatypes.JSON(sizes),
		BrandFonts:            req.BrandFonts,
		Status:                database.CampaignStatusDraft,
		InspirationImageCount: req.InspirationImageCount,
	}
	if len(req.BrandColors) > 0 {
		raw, err := json.Marshal(req.BrandColors)
		if err != nil {
			Internal(c, "failed to encode brand colors")
			return
		}
		campaign.BrandColors = datatypes.JSON(raw)
	}
	if len(req.ToneWords) > 0 {
		raw, err := json.Marshal(req.ToneWords)
		if err != nil {
			Internal(c, "failed to encode tone words")
			return
		}
		campaign.ToneWords = datatypes.JSON(raw)
	}

	if err := h.db.WithContext(ctx).Create(&campaign).Error; err != nil {
		h.logger.Error("create campaign failed", slog.Any("error", err))
		Internal(c, "failed to create campaign")
		return
	}

	c.JSON(http.StatusCreated, newCampaignResponse(campaign))
}

// Generate 触发一次完整生成运行。同一 campaign 同时至多一次运行：
// 入队前抢单飞锁，抢不到返回 409，锁由 Worker 在运行收尾时释放。
func (h *CampaignHandler) Generate(c *gin.Context) {
	campaign, ok := h.loadCampaign(c)
	if !ok {
		return
	}
	if campaign.Brief == "" || !hasAdSizes(campaign) {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "campaign needs a brief and at least one ad size before generating")
		return
	}

	ctx := c.Request.Context()
	lockKey := tasks.GenerationLockKey(campaign.ID)
	acquired, err := acquireLock(ctx, h.redisClient, lockKey, tasks.GenerationLockTTL)
	if err != nil {
		h.logger.Error("acquire generation lock failed", slog.Any("error", err))
		Internal(c, "failed to acquire generation lock")
		return
	}
	if !acquired {
		ErrorCode(c, http.StatusConflict, errcode.RunInFlight, "generation already in progress for this campaign")
		return
	}

	task, err := tasks.NewAdGenerateTask(campaign.ID, middleware.GetCorrelationID(c))
	if err != nil {
		releaseLock(ctx, h.redisClient, lockKey)
		Internal(c, "failed to build generation task")
		return
	}
	if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
		releaseLock(ctx, h.redisClient, lockKey)
		h.logger.Error("enqueue generation task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue generation task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"channel": broadcast.Topic(campaign.ID),
	})
}

// RegenerateBackground 只重跑背景阶段，复用同一把生成锁。
func (h *CampaignHandler) RegenerateBackground(c *gin.Context) {
	campaign, ok := h.loadCampaign(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	lockKey := tasks.GenerationLockKey(campaign.ID)
	acquired, err := acquireLock(ctx, h.redisClient, lockKey, tasks.GenerationLockTTL)
	if err != nil {
		h.logger.Error("acquire generation lock failed", slog.Any("error", err))
		Internal(c, "failed to acquire generation lock")
		return
	}
	if !acquired {
		ErrorCode(c, http.StatusConflict, errcode.RunInFlight, "a run is already in progress for this campaign")
		return
	}

	task, err := tasks.NewBackgroundRegenerateTask(campaign.ID, middleware.GetCorrelationID(c))
	if err != nil {
		releaseLock(ctx, h.redisClient, lockKey)
		Internal(c, "failed to build regeneration task")
		return
	}
	if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
		releaseLock(ctx, h.redisClient, lockKey)
		h.logger.Error("enqueue regeneration task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue regeneration task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"channel": broadcast.Topic(campaign.ID),
	})
}

type adResponse struct {
	ID               uint            `json:"id"`
	VariantID        string          `json:"variant_id"`
	AdSize           string          `json:"ad_size"`
	Headline         string          `json:"headline"`
	Subheadline      string          `json:"subheadline"`
	CallToAction     string          `json:"call_to_action"`
	ElementPositions json.RawMessage `json:"element_positions,omitempty"`
	ImageURL         string          `json:"image_url,omitempty"`
	IsLocked         bool            `json:"is_locked"`
	Status           string          `json:"status"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ListAds 返回 campaign 下全部广告，图片链接优先最终图。
func (h *CampaignHandler) ListAds(c *gin.Context) {
	campaign, ok := h.loadCampaign(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var ads []database.GeneratedAd
	if err := h.db.WithContext(ctx).
		Where("campaign_id = ?", campaign.ID).
		Order("id").
		Find(&ads).Error; err != nil {
		Internal(c, "failed to query ads")
		return
	}

	items := make([]adResponse, 0, len(ads))
	for _, ad := range ads {
		items = append(items, newAdResponse(ctx, h.storage, ad))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DeleteAds 清空 campaign 下的广告与最终图，活动回到 draft。
// 背景档位保留，下一次生成会原地覆盖。
func (h *CampaignHandler) DeleteAds(c *gin.Context) {
	campaign, ok := h.loadCampaign(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).
		Where("campaign_id = ?", campaign.ID).
		Delete(&database.GeneratedAd{}).Error; err != nil {
		Internal(c, "failed to delete ads")
		return
	}

	if err := h.storage.DeletePrefix(ctx, fmt.Sprintf("generated-ads/%d/", campaign.ID)); err != nil {
		h.logger.Warn("purge final images failed",
			slog.Uint64("campaign_id", uint64(campaign.ID)),
			slog.Any("error", err),
		)
	}

	if err := h.db.WithContext(ctx).Model(campaign).
		Update("status", database.CampaignStatusDraft).Error; err != nil {
		Internal(c, "failed to reset campaign status")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *CampaignHandler) loadCampaign(c *gin.Context) (*database.Campaign, bool) {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "invalid campaign id")
		return nil, false
	}

	var campaign database.Campaign
	if err := h.db.WithContext(c.Request.Context()).First(&campaign, campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "campaign not found")
			return nil, false
		}
		Internal(c, "failed to query campaign")
		return nil, false
	}
	return &campaign, true
}

func hasAdSizes(campaign *database.Campaign) bool {
	var sizes []string
	if len(campaign.AdSizes) == 0 {
		return false
	}
	if err := json.Unmarshal(campaign.AdSizes, &sizes); err != nil {
		return false
	}
	return len(sizes) > 0
}

func newCampaignResponse(campaign database.Campaign) campaignResponse {
	resp := campaignResponse{
		ID:       campaign.ID,
		Name:     campaign.Name,
		Brief:    campaign.Brief,
		Goals:    campaign.Goals,
		Audience: campaign.Audience,
		Offer:    campaign.Offer,
		CTA:      campaign.CTA,
		Status:   campaign.Status,
		Channel:  broadcast.Topic(campaign.ID),
	}
	if len(campaign.AdSizes) > 0 {
		_ = json.Unmarshal(campaign.AdSizes, &resp.AdSizes)
	}
	return resp
}

func newAdResponse(ctx context.Context, store objectStore, ad database.GeneratedAd) adResponse {
	objectKey := ad.FinalObjectKey
	if objectKey == "" {
		objectKey = ad.BackgroundObjectKey
	}
	imageURL := ""
	if objectKey != "" {
		if url, err := store.GeneratePresignedURL(ctx, objectKey, 15*time.Minute); err == nil {
			imageURL = url
		}
	}
	return adResponse{
		ID:               ad.ID,
		VariantID:        ad.VariantID,
		AdSize:           ad.AdSize,
		Headline:         ad.Headline,
		Subheadline:      ad.Subheadline,
		CallToAction:     ad.CallToAction,
		ElementPositions: json.RawMessage(ad.ElementPositions),
		ImageURL:         imageURL,
		IsLocked:         ad.IsLocked,
		Status:           ad.Status,
		UpdatedAt:        ad.UpdatedAt,
	}
}
