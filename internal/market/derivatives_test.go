package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDerivatives struct {
	funding    float64
	fundingErr error
	oi         []OpenInterestPoint
	oiErr      error

	gotPeriod string
	gotLimit  int
}

func (s *stubDerivatives) GetFundingRate(context.Context, string) (float64, error) {
	return s.funding, s.fundingErr
}

func (s *stubDerivatives) GetOpenInterestHistory(_ context.Context, _ string, period string, limit int) ([]OpenInterestPoint, error) {
	s.gotPeriod = period
	s.gotLimit = limit
	return s.oi, s.oiErr
}

func TestDerivativesService_Query(t *testing.T) {
	t.Run("all sources ok", func(t *testing.T) {
		src := &stubDerivatives{
			funding: 0.0001,
			oi: []OpenInterestPoint{
				{SumOpenInterestValue: 100},
				{SumOpenInterestValue: 200},
				{SumOpenInterestValue: 300},
			},
		}
		svc := NewDerivativesService(src, "", 0)
		got, errs := svc.Query(context.Background(), "BTC/USDT")
		assert.Empty(t, errs)
		assert.Equal(t, 0.0001, got.FundingRate)
		assert.Equal(t, 300.0, got.OpenInterestLatest)
		assert.Equal(t, 200.0, got.OpenInterestAverage)
		assert.Equal(t, "5m", src.gotPeriod)
		assert.Equal(t, 100, src.gotLimit)
	})

	t.Run("funding failure keeps oi", func(t *testing.T) {
		src := &stubDerivatives{
			fundingErr: errors.New("boom"),
			oi:         []OpenInterestPoint{{SumOpenInterestValue: 50}},
		}
		got, errs := NewDerivativesService(src, "15m", 10).Query(context.Background(), "ETH/USDT")
		require.Len(t, errs, 1)
		assert.Equal(t, 0.0, got.FundingRate)
		assert.Equal(t, 50.0, got.OpenInterestLatest)
		assert.Equal(t, 50.0, got.OpenInterestAverage)
	})

	t.Run("everything fails", func(t *testing.T) {
		src := &stubDerivatives{fundingErr: errors.New("down"), oiErr: errors.New("down")}
		got, errs := NewDerivativesService(src, "", 0).Query(context.Background(), "SOL/USDT")
		assert.Len(t, errs, 2)
		assert.Equal(t, Derivatives{}, got)
	})

	t.Run("empty history is an error", func(t *testing.T) {
		src := &stubDerivatives{funding: 0.0002}
		got, errs := NewDerivativesService(src, "", 0).Query(context.Background(), "SOL/USDT")
		require.Len(t, errs, 1)
		assert.Equal(t, 0.0002, got.FundingRate)
		assert.Zero(t, got.OpenInterestLatest)
	})

	t.Run("nil service", func(t *testing.T) {
		var svc *DerivativesService
		got, errs := svc.Query(context.Background(), "BTC/USDT")
		assert.Len(t, errs, 1)
		assert.Equal(t, Derivatives{}, got)
	})
}

func TestCandles_Helpers(t *testing.T) {
	cs := Candles{
		{OpenTime: 1, High: 2, Low: 1, Close: 1.5, Volume: 10},
		{OpenTime: 2, High: 3, Low: 2, Close: 2.5, Volume: 20},
	}
	assert.Equal(t, []float64{1.5, 2.5}, cs.Closes())
	assert.Equal(t, []float64{2, 3}, cs.Highs())
	assert.Equal(t, []float64{1, 2}, cs.Lows())
	assert.Equal(t, []float64{10, 20}, cs.Volumes())
	last, ok := cs.Last()
	assert.True(t, ok)
	assert.Equal(t, 2.5, last.Close)
	assert.True(t, cs.Ordered())

	cs = append(cs, Candle{OpenTime: 2})
	assert.False(t, cs.Ordered())

	_, ok = Candles{}.Last()
	assert.False(t, ok)
}

func TestCandles_LastClosed(t *testing.T) {
	day := 24 * time.Hour
	y := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	today := y.Add(day)
	cs := Candles{
		{OpenTime: y.Add(-day).UnixMilli(), CloseTime: y.UnixMilli() - 1, Close: 1},
		{OpenTime: y.UnixMilli(), CloseTime: today.UnixMilli() - 1, Close: 2},
		{OpenTime: today.UnixMilli(), CloseTime: today.Add(day).UnixMilli() - 1, Close: 3},
	}
	now := today.Add(6 * time.Hour)

	last, ok := cs.LastClosed(now, day)
	require.True(t, ok)
	assert.Equal(t, 2.0, last.Close)

	last, ok = cs[:2].LastClosed(now, day)
	require.True(t, ok)
	assert.Equal(t, 2.0, last.Close, "already trimmed series keeps its last bar")

	_, ok = cs[2:].LastClosed(now, day)
	assert.False(t, ok)

	noClose := Candle{OpenTime: y.UnixMilli()}
	assert.True(t, noClose.ClosedBy(now, day))
	assert.False(t, noClose.ClosedBy(y.Add(time.Hour), day))
}
