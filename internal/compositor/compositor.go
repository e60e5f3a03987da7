package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"

	"adsmith/internal/layout"

	_ "image/gif"
	_ "image/jpeg"
)

// 确定性的广告合成器：同样的输入字节、文案与布局，两次渲染输出逐像素一致。
// 所有文字统一使用同一款粗体无衬线字体（Go Bold），不按语言环境替换，
// 这是与历史产物保持视觉兼容的要求。

// Input 是一次合成所需的全部素材。Logo 为 nil 表示商家没有上传 logo。
type Input struct {
	AdSize       layout.AdSize
	Positions    layout.PositionSet
	Headline     string
	Subheadline  string
	CallToAction string
	Background   []byte
	Logo         []byte
}

const (
	defaultTextColor = "#000000"
	defaultCTAColor  = "#ffffff"
	defaultCTABg     = "#ff0000"
)

// boldFont 只解析一次。Go Bold 随二进制内嵌，渲染不依赖宿主机字体。
var boldFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(gobold.TTF)
})

// Render 按固定顺序合成最终广告图并编码为 PNG：
// 背景裁剪 → logo → headline → subheadline → CTA 按钮。
// 越界的元素会被画布静默裁掉，渲染降级但不报错。
func Render(in Input) ([]byte, error) {
	width, height, err := in.AdSize.Parse()
	if err != nil {
		return nil, err
	}

	background, _, err := image.Decode(bytes.NewReader(in.Background))
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}

	// 等比放大后居中裁剪到精确的广告位尺寸。
	canvas := imaging.Fill(background, width, height, imaging.Center, imaging.Lanczos)
	dc := gg.NewContextForImage(canvas)

	if in.Logo != nil {
		if position, ok := in.Positions[layout.ElementLogo]; ok {
			if err := drawLogo(dc, in.Logo, position); err != nil {
				return nil, err
			}
		}
	}

	if position, ok := in.Positions[layout.ElementHeadline]; ok {
		if err := drawText(dc, in.Headline, position); err != nil {
			return nil, err
		}
	}

	if position, ok := in.Positions[layout.ElementSubheadline]; ok {
		if err := drawText(dc, in.Subheadline, position); err != nil {
			return nil, err
		}
	}

	if position, ok := in.Positions[layout.ElementCTA]; ok {
		if err := drawCTA(dc, in.CallToAction, position); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode final image: %w", err)
	}
	return buf.Bytes(), nil
}

func drawLogo(dc *gg.Context, logoBytes []byte, position layout.ElementPosition) error {
	logo, _, err := image.Decode(bytes.NewReader(logoBytes))
	if err != nil {
		return fmt.Errorf("decode logo: %w", err)
	}
	resized := imaging.Resize(logo, position.Width, position.Height, imaging.Lanczos)
	// alpha "over" 合成。
	dc.DrawImage(resized, position.X, position.Y)
	return nil
}

func setFace(dc *gg.Context, size int) error {
	font, err := boldFont()
	if err != nil {
		return fmt.Errorf("load font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: float64(size)}))
	return nil
}

// drawText 渲染 headline/subheadline。
// 对齐映射：left 锚在西侧、center 锚在顶部居中、right 锚在东侧，
// (x,y) 始终表示文字块的顶边。
func drawText(dc *gg.Context, text string, position layout.ElementPosition) error {
	if text == "" {
		return nil
	}
	if err := setFace(dc, position.FontSize); err != nil {
		return err
	}

	color := position.Color
	if color == "" {
		color = defaultTextColor
	}
	dc.SetHexColor(color)

	var ax float64
	switch position.Align {
	case layout.AlignLeft:
		ax = 0
	case layout.AlignRight:
		ax = 1
	default:
		ax = 0.5
	}
	dc.DrawStringAnchored(text, float64(position.X), float64(position.Y), ax, 1)
	return nil
}

// drawCTA 先画按钮底色矩形，再把文案渲染到矩形正中。
func drawCTA(dc *gg.Context, text string, position layout.ElementPosition) error {
	bgColor := position.BgColor
	if bgColor == "" {
		bgColor = defaultCTABg
	}
	dc.SetHexColor(bgColor)
	dc.DrawRectangle(float64(position.X), float64(position.Y), float64(position.Width), float64(position.Height))
	dc.Fill()

	if text == "" {
		return nil
	}
	if err := setFace(dc, position.FontSize); err != nil {
		return err
	}

	color := position.Color
	if color == "" {
		color = defaultCTAColor
	}
	dc.SetHexColor(color)

	centerX := float64(position.X) + float64(position.Width)/2
	centerY := float64(position.Y) + float64(position.Height)/2
	dc.DrawStringAnchored(text, centerX, centerY, 0.5, 0.5)
	return nil
}
