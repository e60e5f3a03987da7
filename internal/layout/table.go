package layout

// 默认布局表。数值是纯数据：改动会直接改变所有新生成广告的视觉效果，
// 与历史版本保持像素级一致。

const (
	defaultTextColor    = "#000000"
	defaultSubTextColor = "#333333"
	defaultCTATextColor = "#ffffff"
	defaultCTABgColor   = "#ff0000"
)

var defaultLayouts = map[AdSize]PositionSet{
	SizeMediumRectangle: {
		ElementLogo:        {X: 10, Y: 10, Width: 60, Height: 60},
		ElementHeadline:    {X: 150, Y: 80, FontSize: 20, Color: defaultTextColor, Align: AlignCenter},
		ElementSubheadline: {X: 150, Y: 120, FontSize: 14, Color: defaultSubTextColor, Align: AlignCenter},
		ElementCTA:         {X: 75, Y: 200, Width: 150, Height: 40, FontSize: 16, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
	SizeLeaderboard: {
		ElementLogo:        {X: 10, Y: 15, Width: 60, Height: 60},
		ElementHeadline:    {X: 364, Y: 14, FontSize: 24, Color: defaultTextColor, Align: AlignCenter},
		ElementSubheadline: {X: 364, Y: 48, FontSize: 14, Color: defaultSubTextColor, Align: AlignCenter},
		ElementCTA:         {X: 568, Y: 25, Width: 140, Height: 40, FontSize: 16, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
	SizeWideSkyscraper: {
		ElementLogo:        {X: 50, Y: 20, Width: 60, Height: 60},
		ElementHeadline:    {X: 80, Y: 120, FontSize: 18, Color: defaultTextColor, Align: AlignCenter},
		ElementSubheadline: {X: 80, Y: 160, FontSize: 12, Color: defaultSubTextColor, Align: AlignCenter},
		ElementCTA:         {X: 20, Y: 520, Width: 120, Height: 40, FontSize: 14, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
	SizeHalfPage: {
		ElementLogo:        {X: 120, Y: 30, Width: 60, Height: 60},
		ElementHeadline:    {X: 150, Y: 140, FontSize: 22, Color: defaultTextColor, Align: AlignCenter},
		ElementSubheadline: {X: 150, Y: 185, FontSize: 14, Color: defaultSubTextColor, Align: AlignCenter},
		ElementCTA:         {X: 75, Y: 520, Width: 150, Height: 44, FontSize: 16, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
	SizeMobileBanner: {
		ElementLogo:        {X: 5, Y: 5, Width: 40, Height: 40},
		ElementHeadline:    {X: 55, Y: 8, FontSize: 14, Color: defaultTextColor, Align: AlignLeft},
		ElementSubheadline: {X: 55, Y: 28, FontSize: 10, Color: defaultSubTextColor, Align: AlignLeft},
		ElementCTA:         {X: 230, Y: 10, Width: 80, Height: 30, FontSize: 12, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
	SizeLargeRectangle: {
		ElementLogo:        {X: 10, Y: 10, Width: 60, Height: 60},
		ElementHeadline:    {X: 168, Y: 90, FontSize: 22, Color: defaultTextColor, Align: AlignCenter},
		ElementSubheadline: {X: 168, Y: 130, FontSize: 14, Color: defaultSubTextColor, Align: AlignCenter},
		ElementCTA:         {X: 93, Y: 220, Width: 150, Height: 40, FontSize: 16, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
	SizeBillboard: {
		ElementLogo:        {X: 20, Y: 20, Width: 80, Height: 80},
		ElementHeadline:    {X: 485, Y: 60, FontSize: 36, Color: defaultTextColor, Align: AlignCenter},
		ElementSubheadline: {X: 485, Y: 115, FontSize: 20, Color: defaultSubTextColor, Align: AlignCenter},
		ElementCTA:         {X: 760, Y: 165, Width: 160, Height: 50, FontSize: 18, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
	SizeSocialSquare: {
		ElementLogo:        {X: 40, Y: 40, Width: 120, Height: 120},
		ElementHeadline:    {X: 540, Y: 380, FontSize: 64, Color: defaultTextColor, Align: AlignCenter},
		ElementSubheadline: {X: 540, Y: 470, FontSize: 36, Color: defaultSubTextColor, Align: AlignCenter},
		ElementCTA:         {X: 390, Y: 880, Width: 300, Height: 80, FontSize: 32, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
	},
}

// 未知尺寸的兜底布局，取值与 300x250 一致。
var fallbackLayout = PositionSet{
	ElementLogo:        {X: 10, Y: 10, Width: 60, Height: 60},
	ElementHeadline:    {X: 150, Y: 80, FontSize: 20, Color: defaultTextColor, Align: AlignCenter},
	ElementSubheadline: {X: 150, Y: 120, FontSize: 14, Color: defaultSubTextColor, Align: AlignCenter},
	ElementCTA:         {X: 75, Y: 200, Width: 150, Height: 40, FontSize: 16, Color: defaultCTATextColor, BgColor: defaultCTABgColor},
}

// DefaultPositions 返回指定尺寸的默认布局。
// 纯函数且全域：目录外的尺寸返回兜底布局，永远给出完整的四个元素。
// 返回值是副本，调用方可以放心修改。
func DefaultPositions(size AdSize) PositionSet {
	source, ok := defaultLayouts[size]
	if !ok {
		source = fallbackLayout
	}
	result := make(PositionSet, len(source))
	for element, position := range source {
		result[element] = position
	}
	return result
}
