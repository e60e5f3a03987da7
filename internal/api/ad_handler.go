package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"adsmith/internal/api/middleware"
	"adsmith/internal/broadcast"
	"adsmith/internal/database"
	"adsmith/internal/errcode"
	"adsmith/internal/layout"
	"adsmith/internal/tasks"
)

// AdHandler 处理单条广告的布局编辑、最终合成与解锁。
type AdHandler struct {
	db          *gorm.DB
	asynqClient taskEnqueuer
	redisClient redisLocker
	storage     objectStore
	logger      *slog.Logger
}

// NewAdHandler 构造 AdHandler。
func NewAdHandler(db *gorm.DB, asynqClient taskEnqueuer, redisClient redisLocker, storageClient objectStore, logger *slog.Logger) *AdHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdHandler{
		db:          db,
		asynqClient: asynqClient,
		redisClient: redisClient,
		storage:     storageClient,
		logger:      logger,
	}
}

// UpdatePositions 合并更新广告的元素布局。
// 只校验请求里出现的元素；广告锁定期间拒绝编辑。
func (h *AdHandler) UpdatePositions(c *gin.Context) {
	ad, ok := h.loadAd(c)
	if !ok {
		return
	}
	if ad.IsLocked {
		ErrorCode(c, http.StatusConflict, errcode.AdLocked, "ad is locked; unlock it before editing positions")
		return
	}

	var patch layout.PositionSet
	if err := c.ShouldBindJSON(&patch); err != nil {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, err.Error())
		return
	}
	if len(patch) == 0 {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "no element positions provided")
		return
	}
	for element, pos := range patch {
		if err := pos.Validate(element); err != nil {
			ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, err.Error())
			return
		}
	}

	merged := layout.PositionSet{}
	if len(ad.ElementPositions) > 0 {
		if err := json.Unmarshal(ad.ElementPositions, &merged); err != nil {
			Internal(c, "failed to decode stored positions")
			return
		}
	}
	for element, pos := range patch {
		merged[element] = pos
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		Internal(c, "failed to encode positions")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(ad).
		Update("element_positions", datatypes.JSON(raw)).Error; err != nil {
		Internal(c, "failed to save positions")
		return
	}
	ad.ElementPositions = datatypes.JSON(raw)

	c.JSON(http.StatusOK, newAdResponse(ctx, h.storage, *ad))
}

// Render 触发这条广告的最终合成。同一广告同时至多一次合成在途。
func (h *AdHandler) Render(c *gin.Context) {
	ad, ok := h.loadAd(c)
	if !ok {
		return
	}
	if ad.BackgroundObjectKey == "" {
		ErrorCode(c, http.StatusConflict, errcode.InvalidInput, "ad has no background image yet")
		return
	}

	ctx := c.Request.Context()
	lockKey := tasks.CompositeLockKey(ad.ID)
	acquired, err := acquireLock(ctx, h.redisClient, lockKey, tasks.CompositeLockTTL)
	if err != nil {
		h.logger.Error("acquire composite lock failed", slog.Any("error", err))
		Internal(c, "failed to acquire composite lock")
		return
	}
	if !acquired {
		ErrorCode(c, http.StatusConflict, errcode.RunInFlight, "composition already in progress for this ad")
		return
	}

	task, err := tasks.NewAdCompositeTask(ad.ID, middleware.GetCorrelationID(c))
	if err != nil {
		releaseLock(ctx, h.redisClient, lockKey)
		Internal(c, "failed to build composite task")
		return
	}
	if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
		releaseLock(ctx, h.redisClient, lockKey)
		h.logger.Error("enqueue composite task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue composite task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"channel": broadcast.Topic(ad.CampaignID),
	})
}

// Unlock 解除广告锁定，重新允许布局编辑；已产出的最终图保留。
func (h *AdHandler) Unlock(c *gin.Context) {
	ad, ok := h.loadAd(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if ad.IsLocked {
		if err := h.db.WithContext(ctx).Model(ad).
			Update("is_locked", false).Error; err != nil {
			Internal(c, "failed to unlock ad")
			return
		}
		ad.IsLocked = false
	}

	c.JSON(http.StatusOK, newAdResponse(ctx, h.storage, *ad))
}

func (h *AdHandler) loadAd(c *gin.Context) (*database.GeneratedAd, bool) {
	adID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorCode(c, http.StatusBadRequest, errcode.InvalidInput, "invalid ad id")
		return nil, false
	}

	var ad database.GeneratedAd
	if err := h.db.WithContext(c.Request.Context()).First(&ad, adID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "ad not found")
			return nil, false
		}
		Internal(c, "failed to query ad")
		return nil, false
	}
	return &ad, true
}
