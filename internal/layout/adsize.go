package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// AdSize 是 "宽x高" 形式的广告位标识，例如 "300x250"。
type AdSize string

// 标准广告位目录。未收录的尺寸走 fallback 布局与 square 背景。
const (
	SizeMediumRectangle AdSize = "300x250"
	SizeLeaderboard     AdSize = "728x90"
	SizeWideSkyscraper  AdSize = "160x600"
	SizeHalfPage        AdSize = "300x600"
	SizeMobileBanner    AdSize = "320x50"
	SizeLargeRectangle  AdSize = "336x280"
	SizeBillboard       AdSize = "970x250"
	SizeSocialSquare    AdSize = "1080x1080"
)

// CatalogSizes 按展示顺序列出全部标准尺寸。
var CatalogSizes = []AdSize{
	SizeMediumRectangle,
	SizeLeaderboard,
	SizeWideSkyscraper,
	SizeHalfPage,
	SizeMobileBanner,
	SizeLargeRectangle,
	SizeBillboard,
	SizeSocialSquare,
}

// MalformedAdSizeError 表示尺寸字符串不符合 "<int>x<int>" 格式。
type MalformedAdSizeError struct {
	Input string
}

func (e *MalformedAdSizeError) Error() string {
	return fmt.Sprintf("malformed ad size %q: want \"<width>x<height>\"", e.Input)
}

// Parse 把 "WxH" 解析为像素宽高，两者都必须是正整数。
func (s AdSize) Parse() (width, height int, err error) {
	parts := strings.Split(string(s), "x")
	if len(parts) != 2 {
		return 0, 0, &MalformedAdSizeError{Input: string(s)}
	}
	width, err = strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return 0, 0, &MalformedAdSizeError{Input: string(s)}
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return 0, 0, &MalformedAdSizeError{Input: string(s)}
	}
	return width, height, nil
}

// Aspect 表示背景图的宽高比档位。
type Aspect string

const (
	AspectLeaderboard Aspect = "leaderboard"
	AspectSkyscraper  Aspect = "skyscraper"
	AspectSquare      Aspect = "square"
)

// Aspects 按生成顺序列出三个档位。
var Aspects = []Aspect{AspectLeaderboard, AspectSkyscraper, AspectSquare}

// Valid 判断是否为合法档位。
func (a Aspect) Valid() bool {
	switch a {
	case AspectLeaderboard, AspectSkyscraper, AspectSquare:
		return true
	}
	return false
}

// AspectFor 给出某个广告位应选用的背景档位：
// 宽幅用 leaderboard，竖幅用 skyscraper，其余（含未知尺寸）用 square。
func AspectFor(size AdSize) Aspect {
	switch size {
	case SizeLeaderboard, SizeMobileBanner, SizeBillboard:
		return AspectLeaderboard
	case SizeWideSkyscraper, SizeHalfPage:
		return AspectSkyscraper
	case SizeMediumRectangle, SizeLargeRectangle, SizeSocialSquare:
		return AspectSquare
	default:
		return AspectSquare
	}
}
