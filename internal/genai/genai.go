package genai

import "context"

// 与生成式文本/图像服务的协作边界。
// 编排器只依赖这两个接口，线上实现见 OpenAIClient。

// AdVariant 是文本生成结果的规范化表示。
// 协作方的 JSON 在 ParseAdVariants 里一次性归一化，内部代码不再碰原始响应。
type AdVariant struct {
	VariantID    string `json:"variant_id"`
	Headline     string `json:"headline"`
	Subheadline  string `json:"subheadline"`
	CallToAction string `json:"call_to_action"`
	ImagePrompt  string `json:"image_prompt"`
	Reasoning    string `json:"reasoning"`
}

// TextGenerator 生成广告文案，返回协作方的原始文本响应。
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator 按提示词与目标尺寸生成一张图，返回图片 URL。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, size string) (string, error)
}

// CampaignInput 汇总构建提示词所需的 campaign 与 business 上下文。
type CampaignInput struct {
	Brief       string
	Goals       string
	Audience    string
	Offer       string
	CTA         string
	AdSizes     []string
	BrandColors []string
	BrandFonts  string
	ToneWords   []string

	BusinessName        string
	BusinessType        string
	BusinessDescription string

	InspirationImageCount int
}
