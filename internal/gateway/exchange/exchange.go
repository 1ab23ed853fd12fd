// Package exchange 是决策执行的边界：账户状态查询与已校验决策的执行。
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
)

var (
	ErrNoPosition        = errors.New("no open position")
	ErrPositionExists    = errors.New("position already open")
	ErrInsufficientFunds = errors.New("insufficient available balance")
	ErrNoPrice           = errors.New("price unavailable")
)

// Position 为单个标的的持仓。
type Position struct {
	Symbol        string             `json:"symbol"`
	Side          decision.Direction `json:"side"`
	Quantity      float64            `json:"quantity"`
	EntryPrice    float64            `json:"entry_price"`
	MarkPrice     float64            `json:"mark_price"`
	Leverage      float64            `json:"leverage"`
	Margin        float64            `json:"margin"`
	UnrealizedPnL float64            `json:"unrealized_pnl"`
	OpenedAt      time.Time          `json:"opened_at"`
}

// AccountStatus 为一次决策周期开始时的账户视图，会序列化进提示词。
type AccountStatus struct {
	Quote     string     `json:"quote"`
	Balance   float64    `json:"balance"`
	Available float64    `json:"available"`
	Positions []Position `json:"positions"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (a AccountStatus) Position(symbol string) (Position, bool) {
	for _, p := range a.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// ExecutionResult 描述执行器对一条决策的处理结果。
type ExecutionResult struct {
	Operation   decision.Operation `json:"operation"`
	Symbol      string             `json:"symbol"`
	Direction   decision.Direction `json:"direction,omitempty"`
	Executed    bool               `json:"executed"`
	Price       float64            `json:"price,omitempty"`
	Quantity    float64            `json:"quantity,omitempty"`
	Notional    float64            `json:"notional,omitempty"`
	Margin      float64            `json:"margin,omitempty"`
	RealizedPnL float64            `json:"realized_pnl,omitempty"`
	Message     string             `json:"message,omitempty"`
	ExecutedAt  time.Time          `json:"executed_at"`
}

// Executor 只接收通过校验的 TradeDecision。
type Executor interface {
	Name() string
	AccountStatus(ctx context.Context) (AccountStatus, error)
	Execute(ctx context.Context, d decision.TradeDecision, account AccountStatus) (ExecutionResult, error)
}

// PriceQuoter 提供执行时的参考价格。
type PriceQuoter interface {
	LastPrice(ctx context.Context, ticker string) (float64, error)
}
