package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPrices map[string]float64

func (p fixedPrices) LastPrice(_ context.Context, ticker string) (float64, error) {
	v, ok := p[ticker]
	if !ok {
		return 0, ErrNoPrice
	}
	return v, nil
}

func TestDryRun_OpenAndCloseLong(t *testing.T) {
	prices := fixedPrices{"BTC": 100}
	ex := NewDryRunExecutor("usdt", 1000, prices)
	ctx := context.Background()

	acct, err := ex.AccountStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USDT", acct.Quote)
	assert.InDelta(t, 1000, acct.Available, 1e-9)

	res, err := ex.Execute(ctx, decision.TradeDecision{
		Operation: decision.OperationOpen, Symbol: "BTC", Direction: decision.DirectionLong,
		TargetPortionOfBalance: 0.25, Leverage: 4,
	}, acct)
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.InDelta(t, 250, res.Margin, 1e-9)
	assert.InDelta(t, 1000, res.Notional, 1e-9)
	assert.InDelta(t, 10, res.Quantity, 1e-9)

	prices["BTC"] = 110
	acct, err = ex.AccountStatus(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 750, acct.Available, 1e-9)
	pos, ok := acct.Position("BTC")
	require.True(t, ok)
	assert.InDelta(t, 100, pos.UnrealizedPnL, 1e-9)

	res, err = ex.Execute(ctx, decision.TradeDecision{Operation: decision.OperationClose, Symbol: "BTC"}, acct)
	require.NoError(t, err)
	assert.Equal(t, decision.DirectionLong, res.Direction)
	assert.InDelta(t, 100, res.RealizedPnL, 1e-9)

	acct, err = ex.AccountStatus(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1100, acct.Balance, 1e-9)
	assert.InDelta(t, 1100, acct.Available, 1e-9)
	assert.Empty(t, acct.Positions)
}

func TestDryRun_ShortPnL(t *testing.T) {
	prices := fixedPrices{"ETH": 200}
	ex := NewDryRunExecutor("USDT", 1000, prices)
	ctx := context.Background()
	_, err := ex.Execute(ctx, decision.TradeDecision{
		Operation: decision.OperationOpen, Symbol: "ETH", Direction: decision.DirectionShort,
		TargetPortionOfBalance: 0.5, Leverage: 2,
	}, AccountStatus{})
	require.NoError(t, err)
	prices["ETH"] = 180
	res, err := ex.Execute(ctx, decision.TradeDecision{Operation: decision.OperationClose, Symbol: "ETH"}, AccountStatus{})
	require.NoError(t, err)
	// qty = 500*2/200 = 5, pnl = (200-180)*5
	assert.InDelta(t, 100, res.RealizedPnL, 1e-9)
}

func TestDryRun_Errors(t *testing.T) {
	ex := NewDryRunExecutor("USDT", 1000, fixedPrices{"BTC": 100})
	ctx := context.Background()

	res, err := ex.Execute(ctx, decision.TradeDecision{Operation: decision.OperationHold, Symbol: "BTC"}, AccountStatus{})
	require.NoError(t, err)
	assert.False(t, res.Executed)

	_, err = ex.Execute(ctx, decision.TradeDecision{Operation: decision.OperationClose, Symbol: "BTC"}, AccountStatus{})
	assert.ErrorIs(t, err, ErrNoPosition)

	_, err = ex.Execute(ctx, decision.TradeDecision{
		Operation: decision.OperationOpen, Symbol: "SOL", Direction: decision.DirectionLong,
		TargetPortionOfBalance: 0.1, Leverage: 1,
	}, AccountStatus{})
	assert.ErrorIs(t, err, ErrNoPrice)

	open := decision.TradeDecision{
		Operation: decision.OperationOpen, Symbol: "BTC", Direction: decision.DirectionLong,
		TargetPortionOfBalance: 0.1, Leverage: 1,
	}
	_, err = ex.Execute(ctx, open, AccountStatus{})
	require.NoError(t, err)
	_, err = ex.Execute(ctx, open, AccountStatus{})
	assert.ErrorIs(t, err, ErrPositionExists)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ex.Execute(cancelled, decision.TradeDecision{Operation: decision.OperationClose, Symbol: "BTC"}, AccountStatus{})
	assert.ErrorIs(t, err, context.Canceled)
}

type stubFetcher struct {
	candles []market.Candle
	err     error
	gotSym  string
}

func (f *stubFetcher) FetchHistory(_ context.Context, sym, _ string, _ int) ([]market.Candle, error) {
	f.gotSym = sym
	return f.candles, f.err
}

func TestCandlePriceQuoter(t *testing.T) {
	f := &stubFetcher{candles: []market.Candle{{OpenTime: 1, Close: 10}, {OpenTime: 2, Close: 11}}}
	q := CandlePriceQuoter{Fetcher: f, Quote: "USDT"}
	price, err := q.LastPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, 11.0, price)
	assert.Equal(t, "BTC/USDT", f.gotSym)

	f.err = errors.New("boom")
	_, err = q.LastPrice(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrNoPrice)

	f.err = nil
	f.candles = nil
	_, err = q.LastPrice(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrNoPrice)
}
