package snapshot

import (
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/market"
)

// MarketSnapshot 是单个标的一轮分析的完整快照，返回后不再修改。
type MarketSnapshot struct {
	Ticker      string             `json:"ticker"`
	Symbol      string             `json:"symbol"`
	CapturedAt  time.Time          `json:"captured_at"`
	Current     Current            `json:"current"`
	PivotPoints PivotLevels        `json:"pivot_points"`
	Derivatives market.Derivatives `json:"derivatives"`
	Intraday    Intraday           `json:"intraday"`
	LongerTerm  LongerTerm         `json:"longer_term"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// Current 取自最短周期的最新一行。
type Current struct {
	Price         Value `json:"price"`
	EMA20         Value `json:"ema20"`
	MACDHistogram Value `json:"macd_histogram"`
	RSI7          Value `json:"rsi7"`
}

// Intraday 为最短周期最近 N 行，旧到新。
type Intraday struct {
	Interval      string  `json:"interval"`
	Closes        []Value `json:"closes"`
	EMA20         []Value `json:"ema20"`
	MACDHistogram []Value `json:"macd_histogram"`
	RSI7          []Value `json:"rsi7"`
	RSI14         []Value `json:"rsi14"`
}

// LongerTerm 为较高周期的概览；Available=false 时数值未定义、序列为空。
type LongerTerm struct {
	Interval      string  `json:"interval"`
	Available     bool    `json:"available"`
	EMA20         Value   `json:"ema20"`
	EMA50         Value   `json:"ema50"`
	ATR3          Value   `json:"atr3"`
	ATR14         Value   `json:"atr14"`
	VolumeCurrent Value   `json:"volume_current"`
	VolumeAverage Value   `json:"volume_average"`
	MACDHistogram []Value `json:"macd_histogram"`
	RSI14         []Value `json:"rsi14"`
}

func unavailableLongerTerm(interval string) LongerTerm {
	return LongerTerm{
		Interval:      interval,
		EMA20:         Undefined(),
		EMA50:         Undefined(),
		ATR3:          Undefined(),
		ATR14:         Undefined(),
		VolumeCurrent: Undefined(),
		VolumeAverage: Undefined(),
		MACDHistogram: []Value{},
		RSI14:         []Value{},
	}
}
