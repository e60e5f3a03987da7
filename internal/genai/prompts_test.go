package genai

import (
	"errors"
	"strings"
	"testing"
)

func sampleInput() CampaignInput {
	return CampaignInput{
		Brief:               "Spring promotion for the downtown bakery, focused on fresh sourdough.",
		Goals:               "Increase walk-in traffic",
		Audience:            "Local commuters",
		Offer:               "Buy one loaf, get a coffee free",
		CTA:                 "Visit Us Today",
		AdSizes:             []string{"300x250", "728x90"},
		BrandColors:         []string{"#8B4513", "#FFF8DC"},
		BrandFonts:          "Lato",
		ToneWords:           []string{"warm", "artisanal"},
		BusinessName:        "Crust & Crumb",
		BusinessType:        "bakery",
		BusinessDescription: "A neighborhood bakery.",
	}
}

func TestBuildTextPromptContainsInputs(t *testing.T) {
	prompt, err := BuildTextPrompt(sampleInput())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"BRIEF: Spring promotion",
		"CTA: Visit Us Today",
		"BUSINESS: Crust & Crumb (bakery)",
		"Colors: #8B4513, #FFF8DC",
		"sizes: 300x250, 728x90",
		"No inspiration images provided",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildTextPromptInspirationImages(t *testing.T) {
	input := sampleInput()
	input.InspirationImageCount = 2
	prompt, err := BuildTextPrompt(input)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(prompt, "Inspiration Image 2") {
		t.Error("prompt missing inspiration descriptors")
	}
}

func TestBuildTextPromptTooLong(t *testing.T) {
	input := sampleInput()
	input.Brief = strings.Repeat("a very long brief ", 100)

	_, err := BuildTextPrompt(input)
	if err == nil {
		t.Fatal("expected PromptTooLongError")
	}
	var tooLong *PromptTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("unexpected error type %T", err)
	}
	found := false
	for _, s := range tooLong.Suggestions {
		if strings.Contains(s, "campaign brief") {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions should name the brief, got %v", tooLong.Suggestions)
	}
}

func TestBuildBackgroundPromptPerAspect(t *testing.T) {
	input := sampleInput()
	if len(BackgroundAspectConfigs) != 3 {
		t.Fatalf("expected 3 aspect configs, got %d", len(BackgroundAspectConfigs))
	}
	for _, cfg := range BackgroundAspectConfigs {
		prompt, err := BuildBackgroundPrompt(cfg, input)
		if err != nil {
			t.Fatalf("aspect %s: %v", cfg.Aspect, err)
		}
		if !strings.Contains(prompt, cfg.Aspect) || !strings.Contains(prompt, cfg.Size) {
			t.Errorf("aspect %s: prompt missing aspect/size", cfg.Aspect)
		}
		if !strings.Contains(prompt, "ABSOLUTELY NO TEXT") {
			t.Errorf("aspect %s: prompt missing no-text constraint", cfg.Aspect)
		}
		if len(prompt) > maxPromptLength {
			t.Errorf("aspect %s: prompt over budget (%d)", cfg.Aspect, len(prompt))
		}
	}
}

func TestBuildBackgroundPromptDefaults(t *testing.T) {
	input := sampleInput()
	input.BrandColors = nil
	input.ToneWords = nil

	prompt, err := BuildBackgroundPrompt(BackgroundAspectConfigs[2], input)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(prompt, "professional colors") {
		t.Error("missing color fallback")
	}
	if !strings.Contains(prompt, "professional, modern") {
		t.Error("missing tone fallback")
	}
}
