package layout

import (
	"reflect"
	"testing"
)

func TestDefaultPositionsTotalOverCatalog(t *testing.T) {
	sizes := append([]AdSize{}, CatalogSizes...)
	sizes = append(sizes, AdSize("123x456"))

	for _, size := range sizes {
		positions := DefaultPositions(size)
		if len(positions) != 4 {
			t.Fatalf("size %s: expected 4 elements, got %d", size, len(positions))
		}
		for _, element := range Elements {
			position, ok := positions[element]
			if !ok {
				t.Fatalf("size %s: missing element %s", size, element)
			}
			if err := position.Validate(element); err != nil {
				t.Fatalf("size %s: default position invalid: %v", size, err)
			}
		}
	}
}

func TestDefaultPositionsRepeatable(t *testing.T) {
	for _, size := range CatalogSizes {
		first := DefaultPositions(size)
		second := DefaultPositions(size)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("size %s: repeated calls differ", size)
		}
	}
}

func TestDefaultPositionsReturnsCopy(t *testing.T) {
	positions := DefaultPositions(SizeMediumRectangle)
	positions[ElementLogo] = ElementPosition{X: 999, Y: 999, Width: 1, Height: 1}

	fresh := DefaultPositions(SizeMediumRectangle)
	if fresh[ElementLogo].X == 999 {
		t.Fatal("mutating the returned set leaked into the table")
	}
}

func TestUnknownSizeUsesFallback(t *testing.T) {
	unknown := DefaultPositions(AdSize("999x999"))
	if !reflect.DeepEqual(unknown, DefaultPositions(AdSize("1x1"))) {
		t.Fatal("unknown sizes should share the fallback layout")
	}
	if unknown[ElementCTA].BgColor != defaultCTABgColor {
		t.Fatalf("fallback cta bgColor = %q", unknown[ElementCTA].BgColor)
	}
}

func TestAspectFor(t *testing.T) {
	cases := map[AdSize]Aspect{
		SizeLeaderboard:     AspectLeaderboard,
		SizeMobileBanner:    AspectLeaderboard,
		SizeBillboard:       AspectLeaderboard,
		SizeWideSkyscraper:  AspectSkyscraper,
		SizeHalfPage:        AspectSkyscraper,
		SizeMediumRectangle: AspectSquare,
		SizeLargeRectangle:  AspectSquare,
		SizeSocialSquare:    AspectSquare,
		AdSize("640x480"):   AspectSquare,
	}
	for size, want := range cases {
		if got := AspectFor(size); got != want {
			t.Errorf("AspectFor(%s) = %s, want %s", size, got, want)
		}
	}
}

func TestAdSizeParse(t *testing.T) {
	width, height, err := SizeLeaderboard.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if width != 728 || height != 90 {
		t.Fatalf("parse = %dx%d", width, height)
	}

	for _, bad := range []AdSize{"", "300", "300x", "x250", "-1x50", "0x10", "300x250x1", "wxh"} {
		if _, _, err := bad.Parse(); err == nil {
			t.Errorf("Parse(%q) expected error", bad)
		}
	}
}
