package layout

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestPositionSetRoundTrip(t *testing.T) {
	for _, size := range CatalogSizes {
		original := DefaultPositions(size)

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("size %s: marshal: %v", size, err)
		}

		var decoded PositionSet
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("size %s: unmarshal: %v", size, err)
		}

		if !reflect.DeepEqual(original, decoded) {
			t.Fatalf("size %s: round trip mismatch\n got %#v\nwant %#v", size, decoded, original)
		}
	}
}

func TestPositionSetDecodeFromWireFormat(t *testing.T) {
	raw := `{
		"logo": {"x": 10, "y": 10, "width": 60, "height": 60},
		"headline": {"x": 150, "y": 80, "fontSize": 20, "color": "#000000", "align": "center"},
		"subheadline": {"x": 150, "y": 120, "fontSize": 14, "color": "#333333", "align": "center"},
		"cta": {"x": 75, "y": 200, "width": 150, "height": 40, "fontSize": 16, "color": "#ffffff", "bgColor": "#ff0000"}
	}`

	var set PositionSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := set.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if set[ElementHeadline].FontSize != 20 {
		t.Fatalf("headline fontSize = %d", set[ElementHeadline].FontSize)
	}
	if set[ElementCTA].BgColor != "#ff0000" {
		t.Fatalf("cta bgColor = %q", set[ElementCTA].BgColor)
	}
}

func TestValidateRejectsBadFields(t *testing.T) {
	cases := []struct {
		name    string
		element Element
		pos     ElementPosition
		field   string
	}{
		{"negative x", ElementLogo, ElementPosition{X: -1, Y: 0, Width: 10, Height: 10}, "x"},
		{"negative y", ElementHeadline, ElementPosition{X: 0, Y: -5, FontSize: 12, Align: AlignLeft}, "y"},
		{"logo missing width", ElementLogo, ElementPosition{X: 0, Y: 0, Height: 10}, "width"},
		{"cta missing height", ElementCTA, ElementPosition{X: 0, Y: 0, Width: 10, FontSize: 12}, "height"},
		{"headline missing fontSize", ElementHeadline, ElementPosition{X: 0, Y: 0, Align: AlignLeft}, "fontSize"},
		{"bad align", ElementSubheadline, ElementPosition{X: 0, Y: 0, FontSize: 12, Align: "middle"}, "align"},
		{"bad color", ElementHeadline, ElementPosition{X: 0, Y: 0, FontSize: 12, Align: AlignLeft, Color: "red"}, "color"},
		{"bad bgColor", ElementCTA, ElementPosition{X: 0, Y: 0, Width: 10, Height: 10, FontSize: 12, BgColor: "ff0000"}, "bgColor"},
	}

	for _, tc := range cases {
		err := tc.pos.Validate(tc.element)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		var invalid *InvalidFieldError
		if !errors.As(err, &invalid) {
			t.Errorf("%s: unexpected error type %T", tc.name, err)
			continue
		}
		if invalid.Field != tc.field {
			t.Errorf("%s: field = %q, want %q", tc.name, invalid.Field, tc.field)
		}
	}
}

func TestValidateRejectsUnknownElement(t *testing.T) {
	set := PositionSet{
		Element("banner"): {X: 0, Y: 0},
	}
	if err := set.Validate(); err == nil {
		t.Fatal("expected error for unknown element")
	}
}
