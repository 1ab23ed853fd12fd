package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Luigik28/rizzo-trading-agent/internal/market"
	symbolpkg "github.com/Luigik28/rizzo-trading-agent/internal/pkg/symbol"
	"github.com/Luigik28/rizzo-trading-agent/internal/scheduler"

	"github.com/adshao/go-binance/v2/futures"
)

const (
	maxHistoryLimit = 1500
	maxOILimit      = 500
)

// Source 基于 go-binance SDK（USDT 永续 REST）实现 market.Source。
type Source struct {
	cfg    Config
	client *futures.Client
}

var _ market.Source = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance requires symbols without slashes (e.g., ETHUSDT)
	cleanSymbol := symbolpkg.Binance.ToExchange(symbol)

	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(cleanSymbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", cleanSymbol, interval, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if s.cfg.DropUnclosed {
		if dur, ok := scheduler.ParseIntervalDuration(interval); ok {
			out = scheduler.DropUnclosedBinanceKline(out, dur)
		}
	}
	return out, nil
}

// GetFundingRate 获取最新资金费率（例如 0.0001 即 0.01%）
func (s *Source) GetFundingRate(ctx context.Context, sym string) (float64, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("binance source not initialized")
	}
	binanceSymbol := symbolpkg.Binance.ToExchange(sym)
	if binanceSymbol == "" {
		return 0, fmt.Errorf("invalid symbol: %s", sym)
	}
	res, err := s.client.NewPremiumIndexService().Symbol(binanceSymbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("premium index %s: %w", binanceSymbol, err)
	}
	for _, entry := range res {
		if entry == nil {
			continue
		}
		if strings.EqualFold(entry.Symbol, binanceSymbol) {
			return parseFloat(entry.LastFundingRate), nil
		}
	}
	if len(res) > 0 && res[0] != nil {
		return parseFloat(res[0].LastFundingRate), nil
	}
	return 0, fmt.Errorf("funding rate not available for %s", sym)
}

// GetOpenInterestHistory 获取 OI 历史数据（按时间升序）
func (s *Source) GetOpenInterestHistory(ctx context.Context, sym, period string, limit int) ([]market.OpenInterestPoint, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	if limit <= 0 {
		limit = 30
	}
	if limit > maxOILimit {
		limit = maxOILimit
	}
	binanceSymbol := symbolpkg.Binance.ToExchange(sym)
	period = strings.ToLower(strings.TrimSpace(period))
	if binanceSymbol == "" || period == "" {
		return nil, fmt.Errorf("symbol and period are required")
	}
	stats, err := s.client.NewOpenInterestStatisticsService().Symbol(binanceSymbol).Period(period).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("open interest hist %s: %w", binanceSymbol, err)
	}
	points := make([]market.OpenInterestPoint, 0, len(stats))
	for _, item := range stats {
		if item == nil {
			continue
		}
		points = append(points, market.OpenInterestPoint{
			Symbol:               item.Symbol,
			SumOpenInterest:      parseFloat(item.SumOpenInterest),
			SumOpenInterestValue: parseFloat(item.SumOpenInterestValue),
			Timestamp:            item.Timestamp,
		})
	}
	return points, nil
}

func (s *Source) Close() error {
	if s != nil && s.client != nil && s.client.HTTPClient != nil {
		s.client.HTTPClient.CloseIdleConnections()
	}
	return nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
