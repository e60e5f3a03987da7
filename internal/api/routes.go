package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"adsmith/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	clamdAddr string,
	allowedOrigins []string,
) {
	businessHandler := NewBusinessHandler(db, storageClient, logger, clamdAddr)
	campaignHandler := NewCampaignHandler(db, asynqClient, redisClient, storageClient, logger)
	adHandler := NewAdHandler(db, asynqClient, redisClient, storageClient, logger)
	wsHandler := NewWsHandler(redisClient, logger, allowedOrigins)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		businessGroup := v1.Group("/businesses")
		{
			businessGroup.POST("", businessHandler.CreateBusiness)
			businessGroup.POST("/:id/logo", businessHandler.UploadLogo)
		}

		campaignGroup := v1.Group("/campaigns")
		{
			campaignGroup.POST("", campaignHandler.CreateCampaign)
			campaignGroup.POST("/:id/generate", campaignHandler.Generate)
			campaignGroup.POST("/:id/regenerate-background", campaignHandler.RegenerateBackground)
			campaignGroup.GET("/:id/ads", campaignHandler.ListAds)
			campaignGroup.DELETE("/:id/ads", campaignHandler.DeleteAds)
		}

		adGroup := v1.Group("/ads")
		{
			adGroup.PATCH("/:id/positions", adHandler.UpdatePositions)
			adGroup.POST("/:id/render", adHandler.Render)
			adGroup.POST("/:id/unlock", adHandler.Unlock)
		}
	}
}
