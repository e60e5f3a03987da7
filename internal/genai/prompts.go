package genai

import (
	"fmt"
	"strings"
)

// 提示词构建与长度预算。
// 图像服务对提示词有 1000 字符的硬上限；校验必须发生在任何网络调用之前，
// 超限时给出具体该缩短哪个输入字段的提示，而不是悄悄截断。

const maxPromptLength = 1000

// PromptTooLongError 表示组装出的提示词超过预算。
// Suggestions 指出哪些输入字段过长以及建议。
type PromptTooLongError struct {
	Length      int
	Suggestions []string
}

func (e *PromptTooLongError) Error() string {
	msg := fmt.Sprintf("prompt exceeds %d character limit (%d characters)", maxPromptLength, e.Length)
	if len(e.Suggestions) > 0 {
		msg += ". To fix this, please: " + strings.Join(e.Suggestions, ", ") + "."
	}
	return msg
}

// ValidatePromptLength 检查提示词是否在预算内。
func ValidatePromptLength(prompt string, input CampaignInput) error {
	if len(prompt) <= maxPromptLength {
		return nil
	}
	return &PromptTooLongError{
		Length:      len(prompt),
		Suggestions: shorteningSuggestions(input),
	}
}

func shorteningSuggestions(input CampaignInput) []string {
	var suggestions []string
	add := func(condition bool, format string, args ...interface{}) {
		if condition {
			suggestions = append(suggestions, fmt.Sprintf(format, args...))
		}
	}

	add(len(input.Brief) > 200, "shorten the campaign brief (currently %d characters)", len(input.Brief))
	add(len(input.Goals) > 150, "shorten the campaign goals (currently %d characters)", len(input.Goals))
	add(len(input.Audience) > 150, "shorten the target audience description (currently %d characters)", len(input.Audience))
	add(len(input.Offer) > 150, "shorten the offer details (currently %d characters)", len(input.Offer))
	add(len(input.CTA) > 100, "shorten the call to action (currently %d characters)", len(input.CTA))
	add(len(input.BusinessDescription) > 200, "shorten the business description (currently %d characters)", len(input.BusinessDescription))

	colors := strings.Join(input.BrandColors, ", ")
	add(len(colors) > 100, "reduce the number of brand colors (currently %d characters)", len(colors))
	tone := strings.Join(input.ToneWords, ", ")
	add(len(tone) > 100, "reduce the number of tone words (currently %d characters)", len(tone))

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "review and shorten the campaign content")
	}
	return suggestions
}

// SystemPrompt 返回文案生成的系统提示词。
// 要求输出恰好一个 variant 的 {"variants":[...]} JSON。
func SystemPrompt() string {
	return `You are an expert advertising copywriter and creative director specializing in local business marketing.

Your task is to create compelling, effective advertising content that drives local customer engagement and action.

CRITICAL REQUIREMENTS:
1. Use the provided call-to-action wording EXACTLY as specified
2. Incorporate the business logo prominently and appropriately
3. Reference inspiration images for visual style and mood
4. Match the brand's tone and personality
5. Create content that resonates with the target audience
6. Ensure compliance with advertising standards

OUTPUT FORMAT:
Provide exactly 1 ad variant in the following JSON format:

{
  "variants": [
    {
      "variant_id": "A",
      "headline": "Compelling headline (max 8 words)",
      "subheadline": "Supporting message (max 15 words)",
      "call_to_action": "EXACT CTA text provided",
      "image_prompt": "Detailed visual description for image generation",
      "reasoning": "Why this approach will work for the target audience"
    }
  ]
}

Remember: Focus on local relevance, urgency, and clear value propositions that drive immediate action.`
}

// BuildTextPrompt 组装文案生成的用户提示词并做长度校验。
func BuildTextPrompt(input CampaignInput) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "BRIEF: %s\n", input.Brief)
	fmt.Fprintf(&b, "GOALS: %s\n", input.Goals)
	fmt.Fprintf(&b, "AUDIENCE: %s\n", input.Audience)
	fmt.Fprintf(&b, "OFFER: %s\n", input.Offer)
	fmt.Fprintf(&b, "CTA: %s\n\n", input.CTA)
	fmt.Fprintf(&b, "BUSINESS: %s (%s)\n", input.BusinessName, businessTypeOrDefault(input))
	fmt.Fprintf(&b, "DESCRIPTION: %s\n\n", input.BusinessDescription)
	fmt.Fprintf(&b, "BRAND: Colors: %s | Fonts: %s | Tone: %s\n\n",
		strings.Join(input.BrandColors, ", "),
		input.BrandFonts,
		strings.Join(input.ToneWords, ", "),
	)
	b.WriteString(inspirationContext(input))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Create 1 compelling ad variant for sizes: %s. Include business logo prominently. Focus on single best creative approach.",
		strings.Join(input.AdSizes, ", "))

	prompt := b.String()
	if err := ValidatePromptLength(prompt, input); err != nil {
		return "", err
	}
	return prompt, nil
}

func inspirationContext(input CampaignInput) string {
	if input.InspirationImageCount == 0 {
		return "No inspiration images provided"
	}
	var b strings.Builder
	b.WriteString("The following inspiration images should guide the visual style and mood:\n")
	for i := 0; i < input.InspirationImageCount; i++ {
		fmt.Fprintf(&b, "- Inspiration Image %d: Use this as a reference for visual style, color palette, mood, and overall aesthetic\n", i+1)
	}
	return strings.TrimRight(b.String(), "\n")
}

func businessTypeOrDefault(input CampaignInput) string {
	if strings.TrimSpace(input.BusinessType) == "" {
		return "business"
	}
	return input.BusinessType
}

// AspectConfig 描述一个背景档位的生成参数。
type AspectConfig struct {
	Aspect      string
	Size        string
	Composition string
}

// BackgroundAspectConfigs 是固定的三个背景档位，顺序即生成顺序。
var BackgroundAspectConfigs = []AspectConfig{
	{
		Aspect:      "leaderboard",
		Size:        "1792x1024",
		Composition: "wide flow left to right, calm negative space band for future headline",
	},
	{
		Aspect:      "skyscraper",
		Size:        "1024x1792",
		Composition: "vertical flow top to bottom, calm negative space zones near top and bottom",
	},
	{
		Aspect:      "square",
		Size:        "1024x1024",
		Composition: "centered composition with soft gradients and negative space in upper third",
	},
}

// BuildBackgroundPrompt 组装指定档位的背景图提示词并做长度校验。
// 背景必须完全无文字，文字与按钮由合成器后贴。
func BuildBackgroundPrompt(cfg AspectConfig, input CampaignInput) (string, error) {
	colors := strings.Join(input.BrandColors, ", ")
	if colors == "" {
		colors = "professional colors"
	}
	tone := strings.Join(input.ToneWords, ", ")
	if tone == "" {
		tone = "professional, modern"
	}

	prompt := fmt.Sprintf(`Create a text-free abstract background.

Aspect: %s (%s).
Style: %s.
Primary palette only: %s.
Elements: organic gradients, soft textures, subtle patterns, gentle curves.

Composition guidance: %s.

ABSOLUTELY NO TEXT of any kind. NO letters, NO numerals, NO logos, NO icons, NO symbols, NO signage, NO labels, NO UI.
No objects or packaging. If a typographic or glyph-like mark would appear, replace it with texture or pattern.
Reserve calm negative space for later overlays.`,
		cfg.Aspect, cfg.Size, tone, colors, cfg.Composition)

	if err := ValidatePromptLength(prompt, input); err != nil {
		return "", err
	}
	return prompt, nil
}
