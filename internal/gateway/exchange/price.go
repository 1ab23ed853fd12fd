package exchange

import (
	"context"
	"fmt"

	"github.com/Luigik28/rizzo-trading-agent/internal/market"
	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/symbol"
)

// CandlePriceQuoter 取最近一根 K 线的收盘价作为参考价。
type CandlePriceQuoter struct {
	Fetcher  market.CandleFetcher
	Quote    string
	Interval string
}

func (q CandlePriceQuoter) LastPrice(ctx context.Context, ticker string) (float64, error) {
	if q.Fetcher == nil {
		return 0, ErrNoPrice
	}
	interval := q.Interval
	if interval == "" {
		interval = "1m"
	}
	sym := symbol.FromTicker(ticker, q.Quote).Internal()
	candles, err := q.Fetcher.FetchHistory(ctx, sym, interval, 2)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrNoPrice, sym, err)
	}
	last, ok := market.Candles(candles).Last()
	if !ok || last.Close <= 0 {
		return 0, fmt.Errorf("%w: %s: empty klines", ErrNoPrice, sym)
	}
	return last.Close, nil
}
