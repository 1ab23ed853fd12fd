package market

import "context"

type OpenInterestPoint struct {
	Symbol               string  `json:"symbol"`
	SumOpenInterest      float64 `json:"sumOpenInterest"`
	SumOpenInterestValue float64 `json:"sumOpenInterestValue"`
	Timestamp            int64   `json:"timestamp"`
}

// CandleFetcher 按 (symbol, interval, limit) 返回升序 K 线。
type CandleFetcher interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// DerivativesSource 提供永续合约的资金费率与持仓量历史。
type DerivativesSource interface {
	GetFundingRate(ctx context.Context, symbol string) (float64, error)
	GetOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]OpenInterestPoint, error)
}

// Source 是行情网关需要实现的完整能力集合。
type Source interface {
	CandleFetcher
	DerivativesSource
	Close() error
}
