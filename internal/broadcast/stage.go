package broadcast

// Stage 给流水线的一个阶段分配 [Start,End] 的进度区间。
// 各阶段用 At 做线性插值，避免在编排代码里手写百分比算术，
// 也让"单调不减"变成可以独立测试的性质。
type Stage struct {
	Start int
	End   int
}

// 生成流水线的固定进度区间。
var (
	StageCopy        = Stage{Start: 0, End: 30}
	StageBackgrounds = Stage{Start: 30, End: 40}
	StageFanOut      = Stage{Start: 40, End: 70}
	StageFinalize    = Stage{Start: 70, End: 100}
)

// At 返回阶段内进度 done/total 对应的整体百分比。
// done >= total 时取 End，total <= 0 时取 Start。
func (s Stage) At(done, total int) int {
	if total <= 0 {
		return s.Start
	}
	if done >= total {
		return s.End
	}
	if done < 0 {
		done = 0
	}
	return s.Start + (s.End-s.Start)*done/total
}
