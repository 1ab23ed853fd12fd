package store

import "time"

// OperationRecord 为 Recorder.LogOperation 的输入；Decision/Execution/Indicators/Feeds 会以 JSON 落库。
type OperationRecord struct {
	TraceID      string
	Provider     string
	Operation    string
	Symbol       string
	Direction    string
	Portion      float64
	Leverage     float64
	Reason       string
	Executed     bool
	Decision     any
	Execution    any
	Indicators   any
	Feeds        any
	SystemPrompt string
	RawResponse  string
	At           time.Time
}

// ErrorRecord 为周期失败记录；Context 保存失败前已收集的数据。
type ErrorRecord struct {
	TraceID string
	Stage   string
	Kind    string
	Message string
	Context map[string]any
	At      time.Time
}

// AccountRecord 为每轮开始时的账户状态。
type AccountRecord struct {
	TraceID   string
	Quote     string
	Balance   float64
	Available float64
	Positions any
	At        time.Time
}
