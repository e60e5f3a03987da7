package worker

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"adsmith/internal/broadcast"
	"adsmith/internal/database"
	"adsmith/internal/genai"
)

// 任务处理器对外部设施的依赖都收敛成小接口，线上由
// storage.Client / fetcher.Client / broadcast.Broadcaster / redis.Client
// 实现，测试里直接替换成内存假件。

// ObjectStore 抽象图片产物的读写。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	DeleteObject(ctx context.Context, objectKey string) error
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// ImageFetcher 抽象背景图下载。
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, filename string, err error)
}

// Notifier 抽象进度广播。
type Notifier interface {
	Progress(ctx context.Context, campaignID uint, message string, percentage int)
	BackgroundComplete(ctx context.Context, campaignID uint, variants []broadcast.BackgroundVariantInfo)
	VariantUpdate(ctx context.Context, campaignID uint, variant broadcast.VariantInfo)
	Completion(ctx context.Context, campaignID uint, variants []broadcast.VariantInfo)
	Error(ctx context.Context, campaignID uint, message string)
}

// LockReleaser 释放 API 端为单飞约束加的 Redis 锁。
type LockReleaser interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// presignTTL 是事件与接口里图片链接的有效期。
const presignTTL = 7 * 24 * time.Hour

func stringArray(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// campaignInput 汇总提示词所需上下文，campaign 的品牌覆盖项优先于 business 默认值。
func campaignInput(campaign *database.Campaign) genai.CampaignInput {
	colors := stringArray(campaign.BrandColors)
	if len(colors) == 0 {
		colors = stringArray(campaign.Business.BrandColors)
	}
	tone := stringArray(campaign.ToneWords)
	if len(tone) == 0 {
		tone = stringArray(campaign.Business.ToneWords)
	}
	fonts := campaign.BrandFonts
	if fonts == "" {
		fonts = campaign.Business.BrandFonts
	}

	return genai.CampaignInput{
		Brief:       campaign.Brief,
		Goals:       campaign.Goals,
		Audience:    campaign.Audience,
		Offer:       campaign.Offer,
		CTA:         campaign.CTA,
		AdSizes:     stringArray(campaign.AdSizes),
		BrandColors: colors,
		BrandFonts:  fonts,
		ToneWords:   tone,

		BusinessName:        campaign.Business.Name,
		BusinessType:        campaign.Business.TypeOfBusiness,
		BusinessDescription: campaign.Business.Description,

		InspirationImageCount: campaign.InspirationImageCount,
	}
}
