package errcode

// 错误码约定（随广播/接口透出给前端）：
// - 0：无错误
// - 4xxx：输入类错误，调用方可修正后重试
// - 5xxx：系统/协作方错误，整次运行中断
const (
	OK              = 0
	InvalidInput    = 4000
	PromptTooLong   = 4001
	AdLocked        = 4009
	RunInFlight     = 4029
	CollaboratorErr = 5002
	FetchErr        = 5003
	CompositeErr    = 5004
	SystemError     = 5000
)
