package model

import "gorm.io/datatypes"

// BotOperationModel 记录每轮周期最终执行（或放弃执行）的决策及其完整上下文。
type BotOperationModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TraceID       string         `gorm:"column:trace_id;index"`
	Operation     string         `gorm:"column:operation"`
	Symbol        string         `gorm:"column:symbol;index"`
	Direction     string         `gorm:"column:direction"`
	TargetPortion float64        `gorm:"column:target_portion_of_balance"`
	Leverage      float64        `gorm:"column:leverage"`
	Reason        string         `gorm:"column:reason"`
	Provider      string         `gorm:"column:provider"`
	Executed      bool           `gorm:"column:executed"`
	Decision      datatypes.JSON `gorm:"column:decision"`
	Execution     datatypes.JSON `gorm:"column:execution"`
	Indicators    datatypes.JSON `gorm:"column:indicators"`
	Feeds         datatypes.JSON `gorm:"column:feeds"`
	SystemPrompt  string         `gorm:"column:system_prompt"`
	RawResponse   string         `gorm:"column:raw_response"`
	CreatedAt     int64          `gorm:"column:created_at;index"`
}

func (BotOperationModel) TableName() string { return "bot_operations" }

// AccountSnapshotModel 每轮周期开始时的账户状态。
type AccountSnapshotModel struct {
	ID        int64          `gorm:"column:id;primaryKey"`
	TraceID   string         `gorm:"column:trace_id;index"`
	Quote     string         `gorm:"column:quote"`
	Balance   float64        `gorm:"column:balance"`
	Available float64        `gorm:"column:available"`
	Positions datatypes.JSON `gorm:"column:positions"`
	CreatedAt int64          `gorm:"column:created_at;index"`
}

func (AccountSnapshotModel) TableName() string { return "account_snapshots" }

// ErrorLogModel 周期失败时的阶段、原因与已收集的部分上下文。
type ErrorLogModel struct {
	ID        int64          `gorm:"column:id;primaryKey"`
	TraceID   string         `gorm:"column:trace_id;index"`
	Stage     string         `gorm:"column:stage"`
	Kind      string         `gorm:"column:kind"`
	Message   string         `gorm:"column:message"`
	Context   datatypes.JSON `gorm:"column:context"`
	CreatedAt int64          `gorm:"column:created_at;index"`
}

func (ErrorLogModel) TableName() string { return "error_logs" }
