package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	series map[string][]market.Candle
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) FetchHistory(_ context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s/%s/%d", symbol, interval, limit))
	f.mu.Unlock()
	if err := f.errs[interval]; err != nil {
		return nil, err
	}
	return f.series[interval], nil
}

type fakeDerivatives struct {
	out  market.Derivatives
	errs []error
}

func (f fakeDerivatives) Query(context.Context, string) (market.Derivatives, []error) {
	return f.out, f.errs
}

func makeCandles(n int, step time.Duration, base float64) []market.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		px := base + float64(i)
		out[i] = market.Candle{
			OpenTime: start.Add(time.Duration(i) * step).UnixMilli(),
			Open:     px - 0.5,
			High:     px + 1,
			Low:      px - 1,
			Close:    px,
			Volume:   float64(10 + i),
		}
	}
	return out
}

func fullFetcher() *fakeFetcher {
	// 测试时钟为 2024-02-01 12:00：前一日已收盘，当日仍在进行中。
	daily := makeCandles(2, 24*time.Hour, 100)
	daily[0].OpenTime = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).UnixMilli()
	daily[1].OpenTime = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	daily[0].High, daily[0].Low, daily[0].Close = 110, 90, 105
	return &fakeFetcher{
		series: map[string][]market.Candle{
			"1m": makeCandles(100, time.Minute, 100),
			"4h": makeCandles(100, 4*time.Hour, 200),
			"1d": daily,
		},
		errs: map[string]error{},
	}
}

func newTestBuilder(f *fakeFetcher, d DerivativesQuery) *Builder {
	b := NewBuilder(f, nil, d, Settings{})
	b.nowFn = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }
	return b
}

func TestComputePivots_ClassicProperties(t *testing.T) {
	triples := [][3]float64{
		{110, 90, 105},
		{1.2, 1.0, 1.0},
		{65000, 64000, 64999},
		{3.5, 3.4, 3.45},
	}
	for _, tr := range triples {
		p := ComputePivots(tr[0], tr[1], tr[2], PivotFromDaily)
		assert.Equal(t, (tr[0]+tr[1]+tr[2])/3, p.PP)
		assert.Less(t, p.S1, p.PP)
		assert.Less(t, p.PP, p.R1)
		assert.LessOrEqual(t, p.S2, p.S1)
		assert.GreaterOrEqual(t, p.R2, p.R1)
	}
}

func TestBuilder_Build(t *testing.T) {
	f := fullFetcher()
	b := newTestBuilder(f, fakeDerivatives{out: market.Derivatives{OpenInterestLatest: 5, OpenInterestAverage: 4, FundingRate: 0.0001}})

	snap, err := b.Build(context.Background(), "btc")
	require.NoError(t, err)

	assert.Equal(t, "BTC", snap.Ticker)
	assert.Equal(t, "BTC/USDT", snap.Symbol)
	assert.Empty(t, snap.Warnings)
	assert.Equal(t, Value(199), snap.Current.Price)
	assert.True(t, snap.Current.EMA20.Defined())
	assert.True(t, snap.Current.MACDHistogram.Defined())

	assert.Equal(t, PivotFromDaily, snap.PivotPoints.Source)
	assert.InDelta(t, (110.0+90+105)/3, snap.PivotPoints.PP, 1e-9)

	for _, s := range [][]Value{snap.Intraday.Closes, snap.Intraday.EMA20, snap.Intraday.MACDHistogram, snap.Intraday.RSI7, snap.Intraday.RSI14, snap.LongerTerm.MACDHistogram, snap.LongerTerm.RSI14} {
		assert.Len(t, s, 10)
	}
	for i := 1; i < len(snap.Intraday.Closes); i++ {
		assert.Less(t, float64(snap.Intraday.Closes[i-1]), float64(snap.Intraday.Closes[i]))
	}
	assert.Equal(t, Value(199), snap.Intraday.Closes[9])

	lt := snap.LongerTerm
	assert.True(t, lt.Available)
	assert.Equal(t, Value(109), lt.VolumeCurrent)
	assert.InDelta(t, 99.5, float64(lt.VolumeAverage), 1e-9)
	assert.InDelta(t, 2.0, float64(lt.ATR14), 1e-6)
	assert.Equal(t, 0.0001, snap.Derivatives.FundingRate)

	assert.Contains(t, f.calls, "BTC/USDT/1m/100")
	assert.Contains(t, f.calls, "BTC/USDT/1d/2")
}

func TestBuilder_ShortPrimarySeries(t *testing.T) {
	f := fullFetcher()
	f.series["1m"] = makeCandles(4, time.Minute, 100)
	snap, err := newTestBuilder(f, fakeDerivatives{}).Build(context.Background(), "ETH")
	require.NoError(t, err)

	assert.Len(t, snap.Intraday.Closes, 4)
	assert.Len(t, snap.Intraday.EMA20, 4)
	assert.False(t, snap.Current.EMA20.Defined())
	assert.Contains(t, Render(snap), "current_ema20 = n/a")

	raw, err := json.Marshal(snap.Current)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ema20":null`)
}

func TestBuilder_DerivativeFailureDefaultsToZero(t *testing.T) {
	f := fullFetcher()
	b := newTestBuilder(f, fakeDerivatives{errs: []error{errors.New("funding down"), errors.New("oi down")}})
	snap, err := b.Build(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, market.Derivatives{}, snap.Derivatives)
	require.Len(t, snap.Warnings, 2)
	assert.Contains(t, snap.Warnings[0], "funding down")
}

func TestBuilder_PivotFallbacks(t *testing.T) {
	t.Run("already trimmed daily history uses its closed bar", func(t *testing.T) {
		f := fullFetcher()
		f.series["1d"] = f.series["1d"][:1]
		snap, err := newTestBuilder(f, fakeDerivatives{}).Build(context.Background(), "BTC")
		require.NoError(t, err)
		assert.Equal(t, PivotFromDaily, snap.PivotPoints.Source)
		assert.InDelta(t, (110.0+90+105)/3, snap.PivotPoints.PP, 1e-9)
		assert.Empty(t, snap.Warnings)
	})

	t.Run("longer daily history picks the latest closed day", func(t *testing.T) {
		f := fullFetcher()
		older := market.Candle{OpenTime: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC).UnixMilli(), High: 500, Low: 400, Close: 450}
		f.series["1d"] = append([]market.Candle{older}, f.series["1d"]...)
		snap, err := newTestBuilder(f, fakeDerivatives{}).Build(context.Background(), "BTC")
		require.NoError(t, err)
		assert.Equal(t, PivotFromDaily, snap.PivotPoints.Source)
		assert.InDelta(t, (110.0+90+105)/3, snap.PivotPoints.PP, 1e-9)
	})

	t.Run("only the unfinished daily bar uses higher timeframe", func(t *testing.T) {
		f := fullFetcher()
		f.series["1d"] = f.series["1d"][1:]
		snap, err := newTestBuilder(f, fakeDerivatives{}).Build(context.Background(), "BTC")
		require.NoError(t, err)
		last := f.series["4h"][99]
		assert.Equal(t, PivotFromHigherTimeframe, snap.PivotPoints.Source)
		assert.InDelta(t, (last.High+last.Low+last.Close)/3, snap.PivotPoints.PP, 1e-9)
		assert.NotEmpty(t, snap.Warnings)
	})

	t.Run("daily error uses higher timeframe", func(t *testing.T) {
		f := fullFetcher()
		f.errs["1d"] = errors.New("timeout")
		snap, err := newTestBuilder(f, fakeDerivatives{}).Build(context.Background(), "BTC")
		require.NoError(t, err)
		assert.Equal(t, PivotFromHigherTimeframe, snap.PivotPoints.Source)
	})

	t.Run("daily and higher unavailable uses primary", func(t *testing.T) {
		f := fullFetcher()
		f.errs["1d"] = errors.New("timeout")
		f.errs["4h"] = errors.New("timeout")
		snap, err := newTestBuilder(f, fakeDerivatives{}).Build(context.Background(), "BTC")
		require.NoError(t, err)
		assert.Equal(t, PivotFromPrimary, snap.PivotPoints.Source)
		assert.False(t, snap.LongerTerm.Available)
		assert.Empty(t, snap.LongerTerm.MACDHistogram)
		assert.True(t, math.IsNaN(float64(snap.LongerTerm.EMA50)))
		assert.GreaterOrEqual(t, len(snap.Warnings), 3)
		assert.Contains(t, Render(snap), "unavailable")
	})
}

func TestBuilder_PrimaryUnavailable(t *testing.T) {
	cases := map[string]func(f *fakeFetcher){
		"error": func(f *fakeFetcher) { f.errs["1m"] = errors.New("502") },
		"empty": func(f *fakeFetcher) { f.series["1m"] = nil },
		"out of order": func(f *fakeFetcher) {
			s := makeCandles(5, time.Minute, 100)
			s[2], s[3] = s[3], s[2]
			f.series["1m"] = s
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := fullFetcher()
			mutate(f)
			_, err := newTestBuilder(f, fakeDerivatives{}).Build(context.Background(), "BTC")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDataUnavailable)
		})
	}
}

func TestBuilder_BuildAll(t *testing.T) {
	f := fullFetcher()
	b := newTestBuilder(f, fakeDerivatives{})
	snaps, err := b.BuildAll(context.Background(), []string{"eth", "BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "ETH", snaps[0].Ticker)
	assert.Equal(t, "BTC", snaps[1].Ticker)

	text := RenderAll(snaps)
	assert.Equal(t, 1, strings.Count(text, "ALL ETH DATA"))
	assert.Contains(t, text, "Pivot Points (based on previous day)")

	raw, err := JSON(snaps)
	require.NoError(t, err)
	assert.Contains(t, raw, `"ticker":"BTC"`)

	f.errs["1m"] = errors.New("down")
	_, err = b.BuildAll(context.Background(), []string{"BTC", "ETH"})
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = b.BuildAll(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestValue_Format(t *testing.T) {
	assert.Equal(t, "n/a", Undefined().Format(3))
	assert.Equal(t, "0.000", Value(0).Format(3))
	assert.Equal(t, "[1.0, n/a]", formatValues([]Value{1, Undefined()}, 1))

	var v Value
	require.NoError(t, json.Unmarshal([]byte("null"), &v))
	assert.False(t, v.Defined())
	require.NoError(t, json.Unmarshal([]byte("1.5"), &v))
	assert.Equal(t, Value(1.5), v)
}
