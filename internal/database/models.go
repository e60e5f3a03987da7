package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Campaign 状态机。核心流程只驱动 draft → ready（生成成功时）。
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusReady     = "ready"
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
)

// GeneratedAd 状态。
const (
	AdStatusGenerating = "generating"
	AdStatusCompleted  = "completed"
	AdStatusFailed     = "failed"
)

// Business 表示投放广告的商家，品牌信息只作为生成输入。
type Business struct {
	gorm.Model
	Name           string         `gorm:"size:255"`
	TypeOfBusiness string         `gorm:"size:128"`
	Description    string         `gorm:"type:text"`
	BrandColors    datatypes.JSON `gorm:"type:jsonb"` // 十六进制色值的 JSON 数组
	BrandFonts     string         `gorm:"size:255"`
	ToneWords      datatypes.JSON `gorm:"type:jsonb"`
	LogoObjectKey  string         `gorm:"size:512"`
	Campaigns      []Campaign     `gorm:"constraint:OnDelete:CASCADE"`
}

// Campaign 表示一次投放的创意简报与品牌覆盖项。
// 由外围 CRUD 维护，核心流程只读；生成成功后状态置为 ready。
type Campaign struct {
	gorm.Model
	BusinessID uint     `gorm:"index"`
	Business   Business `gorm:"constraint:OnDelete:CASCADE"`

	Name     string `gorm:"size:100"`
	Brief    string `gorm:"type:text"`
	Goals    string `gorm:"type:text"`
	Audience string `gorm:"type:text"`
	Offer    string `gorm:"type:text"`
	CTA      string `gorm:"size:255"`

	// 品牌覆盖项：为空时回落到 Business 上的默认值。
	BrandColors datatypes.JSON `gorm:"type:jsonb"`
	BrandFonts  string         `gorm:"size:255"`
	ToneWords   datatypes.JSON `gorm:"type:jsonb"`

	AdSizes datatypes.JSON `gorm:"type:jsonb"` // "WxH" 字符串数组，保持配置顺序
	Status  string         `gorm:"size:32;default:draft"`

	InspirationImageCount int

	GeneratedAds       []GeneratedAd       `gorm:"constraint:OnDelete:CASCADE"`
	BackgroundVariants []BackgroundVariant `gorm:"constraint:OnDelete:CASCADE"`
}

// BackgroundVariant 每个 (campaign, aspect) 一条，重生成时原地覆盖。
// 唯一索引保证同一档位绝不出现重复行。
type BackgroundVariant struct {
	gorm.Model
	CampaignID     uint   `gorm:"uniqueIndex:idx_campaign_aspect"`
	Aspect         string `gorm:"size:32;uniqueIndex:idx_campaign_aspect"`
	Size           string `gorm:"size:32"`
	ImageObjectKey string `gorm:"size:512"`
}

// GeneratedAd 是一次生成运行里每个广告位的产物。
// IsLocked 为 true 当且仅当最终图已产出；锁定期间布局不可改，
// 除非显式走 unlock。
type GeneratedAd struct {
	gorm.Model
	CampaignID uint `gorm:"index"`

	VariantID    string `gorm:"size:64"`
	AdSize       string `gorm:"size:32;index"`
	Headline     string `gorm:"size:255"`
	Subheadline  string `gorm:"size:255"`
	CallToAction string `gorm:"size:255"`
	ImagePrompt  string `gorm:"type:text"`
	Reasoning    string `gorm:"type:text"`

	ElementPositions datatypes.JSON `gorm:"type:jsonb"`

	BackgroundObjectKey string `gorm:"size:512"`
	FinalObjectKey      string `gorm:"size:512"`
	IsLocked            bool   `gorm:"default:false"`
	Status              string `gorm:"size:32"`
}
