package layout

import (
	"fmt"
	"regexp"
)

// Element 表示画布上的一个逻辑元素。
type Element string

const (
	ElementLogo        Element = "logo"
	ElementHeadline    Element = "headline"
	ElementSubheadline Element = "subheadline"
	ElementCTA         Element = "cta"
)

// Elements 按合成顺序列出全部元素。
var Elements = []Element{ElementLogo, ElementHeadline, ElementSubheadline, ElementCTA}

// Align 表示文字元素的对齐方式。
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ElementPosition 描述单个元素的摆放与样式。
// 坐标是画布左上角为原点的像素值；Width/Height 仅 logo 与 cta 必填，
// FontSize 仅文字元素必填，BgColor 仅 cta 使用。
type ElementPosition struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FontSize int    `json:"fontSize,omitempty"`
	Color    string `json:"color,omitempty"`
	Align    Align  `json:"align,omitempty"`
	BgColor  string `json:"bgColor,omitempty"`
}

// PositionSet 以元素名为键持久化/传输整套布局。
type PositionSet map[Element]ElementPosition

// InvalidFieldError 指出校验失败的字段。
type InvalidFieldError struct {
	Element Element
	Field   string
	Reason  string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid position field %s.%s: %s", e.Element, e.Field, e.Reason)
}

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate 做字段级结构校验。
// 不做跨字段或画布越界检查：越界摆放由合成端降级处理而非拒绝。
func (p ElementPosition) Validate(element Element) error {
	if p.X < 0 {
		return &InvalidFieldError{Element: element, Field: "x", Reason: "must be >= 0"}
	}
	if p.Y < 0 {
		return &InvalidFieldError{Element: element, Field: "y", Reason: "must be >= 0"}
	}

	switch element {
	case ElementLogo, ElementCTA:
		if p.Width <= 0 {
			return &InvalidFieldError{Element: element, Field: "width", Reason: "must be positive"}
		}
		if p.Height <= 0 {
			return &InvalidFieldError{Element: element, Field: "height", Reason: "must be positive"}
		}
	}

	switch element {
	case ElementHeadline, ElementSubheadline, ElementCTA:
		if p.FontSize <= 0 {
			return &InvalidFieldError{Element: element, Field: "fontSize", Reason: "must be positive"}
		}
		if p.Color != "" && !hexColorPattern.MatchString(p.Color) {
			return &InvalidFieldError{Element: element, Field: "color", Reason: "must be #rrggbb"}
		}
	}

	switch element {
	case ElementHeadline, ElementSubheadline:
		switch p.Align {
		case AlignLeft, AlignCenter, AlignRight:
		default:
			return &InvalidFieldError{Element: element, Field: "align", Reason: "must be left/center/right"}
		}
	}

	if element == ElementCTA && p.BgColor != "" && !hexColorPattern.MatchString(p.BgColor) {
		return &InvalidFieldError{Element: element, Field: "bgColor", Reason: "must be #rrggbb"}
	}

	return nil
}

// Validate 校验整套布局中出现的每个元素。
func (s PositionSet) Validate() error {
	for element, position := range s {
		switch element {
		case ElementLogo, ElementHeadline, ElementSubheadline, ElementCTA:
		default:
			return &InvalidFieldError{Element: element, Field: "name", Reason: "unknown element"}
		}
		if err := position.Validate(element); err != nil {
			return err
		}
	}
	return nil
}
