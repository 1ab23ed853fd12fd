package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/analysis/indicator"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
	"github.com/Luigik28/rizzo-trading-agent/internal/market"
	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/symbol"
	"github.com/Luigik28/rizzo-trading-agent/internal/scheduler"

	"golang.org/x/sync/errgroup"
)

// ErrDataUnavailable 表示最短周期 K 线无法获取（失败、为空或乱序），本轮不应继续决策。
var ErrDataUnavailable = errors.New("primary market data unavailable")

const (
	minWarmupBars       = 100
	defaultTailLength   = 10
	defaultVolumeWindow = 20
)

// Settings 控制各周期的拉取参数。
type Settings struct {
	Quote           string
	PrimaryInterval string
	PrimaryLimit    int
	HigherInterval  string
	HigherLimit     int
	DailyInterval   string
	DailyLimit      int
	TailLength      int
	VolumeWindow    int
}

func (s Settings) withDefaults() Settings {
	out := s
	out.Quote = strings.ToUpper(strings.TrimSpace(out.Quote))
	if out.Quote == "" {
		out.Quote = symbol.DefaultQuote
	}
	if strings.TrimSpace(out.PrimaryInterval) == "" {
		out.PrimaryInterval = "1m"
	}
	if out.PrimaryLimit < minWarmupBars {
		out.PrimaryLimit = minWarmupBars
	}
	if strings.TrimSpace(out.HigherInterval) == "" {
		out.HigherInterval = "4h"
	}
	if out.HigherLimit < minWarmupBars {
		out.HigherLimit = minWarmupBars
	}
	if strings.TrimSpace(out.DailyInterval) == "" {
		out.DailyInterval = "1d"
	}
	if out.DailyLimit < 2 {
		out.DailyLimit = 2
	}
	if out.TailLength <= 0 {
		out.TailLength = defaultTailLength
	}
	if out.VolumeWindow <= 0 {
		out.VolumeWindow = defaultVolumeWindow
	}
	return out
}

// DerivativesQuery 由 market.DerivativesService 实现。
type DerivativesQuery interface {
	Query(ctx context.Context, symbol string) (market.Derivatives, []error)
}

// Builder 组装多周期快照。
type Builder struct {
	fetcher     market.CandleFetcher
	engine      indicator.Engine
	derivatives DerivativesQuery
	settings    Settings
	nowFn       func() time.Time
}

func NewBuilder(fetcher market.CandleFetcher, engine indicator.Engine, derivatives DerivativesQuery, settings Settings) *Builder {
	if engine == nil {
		engine = indicator.TALib{}
	}
	return &Builder{
		fetcher:     fetcher,
		engine:      engine,
		derivatives: derivatives,
		settings:    settings.withDefaults(),
		nowFn:       time.Now,
	}
}

func (b *Builder) Settings() Settings { return b.settings }

type fetchResult struct {
	candles market.Candles
	err     error
}

// Build 并发拉取主周期、较高周期、日线与衍生品数据，全部返回后再组装快照。
// 只有主周期不可用时返回 ErrDataUnavailable；其他来源降级为告警。
func (b *Builder) Build(ctx context.Context, ticker string) (MarketSnapshot, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if b == nil || b.fetcher == nil {
		return MarketSnapshot{}, fmt.Errorf("%w: %s: candle fetcher not configured", ErrDataUnavailable, ticker)
	}
	sym := symbol.FromTicker(ticker, b.settings.Quote).Internal()
	if sym == "" {
		return MarketSnapshot{}, fmt.Errorf("%w: empty ticker", ErrDataUnavailable)
	}
	cfg := b.settings

	var (
		primary, higher, daily fetchResult
		derivs                 market.Derivatives
		derivErrs              []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary = b.fetch(gctx, sym, cfg.PrimaryInterval, cfg.PrimaryLimit)
		if primary.err != nil {
			return primary.err
		}
		if len(primary.candles) == 0 {
			return fmt.Errorf("%s %s returned no bars", sym, cfg.PrimaryInterval)
		}
		if !primary.candles.Ordered() {
			return fmt.Errorf("%s %s bars are not strictly increasing", sym, cfg.PrimaryInterval)
		}
		return nil
	})
	g.Go(func() error {
		higher = b.fetch(gctx, sym, cfg.HigherInterval, cfg.HigherLimit)
		return nil
	})
	g.Go(func() error {
		daily = b.fetch(gctx, sym, cfg.DailyInterval, cfg.DailyLimit)
		return nil
	})
	g.Go(func() error {
		if b.derivatives == nil {
			derivErrs = []error{fmt.Errorf("derivatives query not configured")}
			return nil
		}
		derivs, derivErrs = b.derivatives.Query(gctx, sym)
		return nil
	})
	if err := g.Wait(); err != nil {
		return MarketSnapshot{}, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, ticker, err)
	}

	snap := MarketSnapshot{
		Ticker:      ticker,
		Symbol:      sym,
		CapturedAt:  b.nowFn().UTC(),
		Derivatives: derivs,
	}
	for _, err := range derivErrs {
		snap.warn("derivatives: %v, defaulting to 0", err)
	}

	snap.Current, snap.Intraday = b.primarySection(primary.candles)

	higherOK := b.usable(&snap, "higher timeframe", cfg.HigherInterval, higher)
	if higherOK {
		snap.LongerTerm = b.longerTermSection(higher.candles)
	} else {
		snap.LongerTerm = unavailableLongerTerm(cfg.HigherInterval)
	}

	snap.PivotPoints = b.pivots(&snap, daily, higher.candles, higherOK, primary.candles)
	return snap, nil
}

// BuildAll 并发构建多个标的，任一失败则整体失败；结果顺序与输入一致。
func (b *Builder) BuildAll(ctx context.Context, tickers []string) ([]MarketSnapshot, error) {
	tickers = symbol.NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers configured", ErrDataUnavailable)
	}
	out := make([]MarketSnapshot, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			snap, err := b.Build(gctx, ticker)
			if err != nil {
				return err
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) fetch(ctx context.Context, sym, interval string, limit int) fetchResult {
	candles, err := b.fetcher.FetchHistory(ctx, sym, interval, limit)
	if err != nil {
		return fetchResult{err: fmt.Errorf("fetch %s %s: %w", sym, interval, err)}
	}
	return fetchResult{candles: market.Candles(candles)}
}

func (b *Builder) usable(snap *MarketSnapshot, label, interval string, res fetchResult) bool {
	switch {
	case res.err != nil:
		snap.warn("%s %s unavailable: %v", label, interval, res.err)
	case len(res.candles) == 0:
		snap.warn("%s %s returned no bars", label, interval)
	case !res.candles.Ordered():
		snap.warn("%s %s bars out of order, ignored", label, interval)
	default:
		return true
	}
	return false
}

func (b *Builder) primarySection(candles market.Candles) (Current, Intraday) {
	closes := candles.Closes()
	ema20 := b.engine.EMA(closes, 20)
	hist := b.engine.MACDHistogram(closes)
	rsi7 := b.engine.RSI(closes, 7)
	rsi14 := b.engine.RSI(closes, 14)

	n := b.settings.TailLength
	cur := Current{
		Price:         Value(closes[len(closes)-1]),
		EMA20:         Value(ema20.Last()),
		MACDHistogram: Value(hist.Last()),
		RSI7:          Value(rsi7.Last()),
	}
	intra := Intraday{
		Interval:      b.settings.PrimaryInterval,
		Closes:        valuesOf(indicator.Series(closes).Tail(n)),
		EMA20:         valuesOf(ema20.Tail(n)),
		MACDHistogram: valuesOf(hist.Tail(n)),
		RSI7:          valuesOf(rsi7.Tail(n)),
		RSI14:         valuesOf(rsi14.Tail(n)),
	}
	return cur, intra
}

func (b *Builder) longerTermSection(candles market.Candles) LongerTerm {
	closes := candles.Closes()
	highs := candles.Highs()
	lows := candles.Lows()
	volumes := candles.Volumes()
	n := b.settings.TailLength
	return LongerTerm{
		Interval:      b.settings.HigherInterval,
		Available:     true,
		EMA20:         Value(b.engine.EMA(closes, 20).Last()),
		EMA50:         Value(b.engine.EMA(closes, 50).Last()),
		ATR3:          Value(b.engine.ATR(highs, lows, closes, 3).Last()),
		ATR14:         Value(b.engine.ATR(highs, lows, closes, 14).Last()),
		VolumeCurrent: Value(volumes[len(volumes)-1]),
		VolumeAverage: Value(indicator.Mean(volumes, b.settings.VolumeWindow)),
		MACDHistogram: valuesOf(b.engine.MACDHistogram(closes).Tail(n)),
		RSI14:         valuesOf(b.engine.RSI(closes, 14).Tail(n)),
	}
}

// pivots 优先使用最近一根已收盘的日线；否则依次退回较高周期、主周期的最新一根。
// 行情源可能已剔除未收盘的当日 K 线，也可能保留，因此按收盘时间挑选而不是按下标。
func (b *Builder) pivots(snap *MarketSnapshot, daily fetchResult, higher market.Candles, higherOK bool, primary market.Candles) PivotLevels {
	if daily.err == nil && daily.candles.Ordered() {
		dur, ok := scheduler.ParseIntervalDuration(b.settings.DailyInterval)
		if !ok {
			dur = 24 * time.Hour
		}
		if prev, ok := daily.candles.LastClosed(snap.CapturedAt, dur); ok {
			return ComputePivots(prev.High, prev.Low, prev.Close, PivotFromDaily)
		}
	}
	switch {
	case daily.err != nil:
		snap.warn("daily pivot source unavailable: %v", daily.err)
	case !daily.candles.Ordered():
		snap.warn("daily bars out of order, pivot source degraded")
	default:
		snap.warn("no closed %s bar among %d fetched, pivot source degraded", b.settings.DailyInterval, len(daily.candles))
	}
	if higherOK {
		last, _ := higher.Last()
		snap.warn("pivot points computed from latest %s bar", b.settings.HigherInterval)
		return ComputePivots(last.High, last.Low, last.Close, PivotFromHigherTimeframe)
	}
	last, _ := primary.Last()
	snap.warn("pivot points computed from latest %s bar", b.settings.PrimaryInterval)
	return ComputePivots(last.High, last.Low, last.Close, PivotFromPrimary)
}

func (s *MarketSnapshot) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.Warnings = append(s.Warnings, msg)
	logger.Warnf("[snapshot] %s: %s", s.Ticker, msg)
}
