package genai

import "testing"

func TestParseAdVariants(t *testing.T) {
	response := `Here is the ad you asked for:

` + "```json" + `
{
  "variants": [
    {
      "variant_id": "A",
      "headline": "Fresh Bread Daily",
      "subheadline": "Baked before sunrise, gone by noon",
      "call_to_action": "Visit Us Today",
      "image_prompt": "warm bakery scene",
      "reasoning": "appeals to commuters"
    }
  ]
}
` + "```"

	variants, err := ParseAdVariants(response)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(variants) != 1 {
		t.Fatalf("got %d variants", len(variants))
	}
	v := variants[0]
	if v.VariantID != "A" || v.Headline != "Fresh Bread Daily" || v.CallToAction != "Visit Us Today" {
		t.Fatalf("variant = %#v", v)
	}
}

func TestParseAdVariantsFillsMissingID(t *testing.T) {
	variants, err := ParseAdVariants(`{"variants":[{"headline":"H","subheadline":"S","call_to_action":"C","image_prompt":"P"}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if variants[0].VariantID != "variant_1" {
		t.Fatalf("variant_id = %q", variants[0].VariantID)
	}
}

func TestParseAdVariantsErrors(t *testing.T) {
	cases := []string{
		"",
		"no json here",
		`{"variants": []}`,
		`{"variants": "not an array"}`,
	}
	for _, input := range cases {
		if _, err := ParseAdVariants(input); err == nil {
			t.Errorf("ParseAdVariants(%q) expected error", input)
		}
	}
}
