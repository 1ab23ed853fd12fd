package decision

import (
	"encoding/json"
	"strings"
)

type Operation string

const (
	OperationOpen  Operation = "open"
	OperationClose Operation = "close"
	OperationHold  Operation = "hold"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationOpen, OperationClose, OperationHold:
		return true
	}
	return false
}

type Direction string

const (
	DirectionNone  Direction = ""
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

const MaxReasonLength = 300

// DefaultSymbols 为默认可交易标的。
var DefaultSymbols = []string{"BTC", "ETH", "SOL"}

// TradeDecision 是通过全部校验后的决策，只有它会交给执行器。
type TradeDecision struct {
	Operation              Operation `json:"operation"`
	Symbol                 string    `json:"symbol"`
	Direction              Direction `json:"direction"`
	TargetPortionOfBalance float64   `json:"target_portion_of_balance"`
	Leverage               float64   `json:"leverage"`
	Reason                 string    `json:"reason"`
	// DirectionInferred 为 true 表示方向由 DirectionPolicy 补全而非模型给出。
	DirectionInferred bool `json:"direction_inferred,omitempty"`
}

// MarshalJSON 将缺省方向输出为 null。
func (d TradeDecision) MarshalJSON() ([]byte, error) {
	type alias TradeDecision
	out := struct {
		alias
		Direction *string `json:"direction"`
	}{alias: alias(d)}
	if d.Direction != DirectionNone {
		dir := string(d.Direction)
		out.Direction = &dir
	}
	return json.Marshal(out)
}

// document 返回用于 JSON Schema 校验的通用结构。
func (d TradeDecision) document() map[string]any {
	var dir any
	if d.Direction != DirectionNone {
		dir = string(d.Direction)
	}
	return map[string]any{
		"operation":                 string(d.Operation),
		"symbol":                    d.Symbol,
		"direction":                 dir,
		"target_portion_of_balance": d.TargetPortionOfBalance,
		"leverage":                  d.Leverage,
		"reason":                    d.Reason,
	}
}

// Request 是发送给模型的完整上下文，核心逻辑不解析其内容。
type Request struct {
	TraceID     string
	Instruction string
}

func (r Request) Empty() bool {
	return strings.TrimSpace(r.Instruction) == ""
}
