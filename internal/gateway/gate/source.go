package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
	"github.com/Luigik28/rizzo-trading-agent/internal/market"
	symbolpkg "github.com/Luigik28/rizzo-trading-agent/internal/pkg/symbol"
	"github.com/Luigik28/rizzo-trading-agent/internal/scheduler"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"
)

const (
	gateSettle          = "usdt"
	gateMaxHistoryLimit = 2000
)

// Source 基于 Gate USDT 永续 REST 接口实现 market.Source。
type Source struct {
	cfg  Config
	rest *gateapi.APIClient
}

var _ market.Source = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	restClient, err := newRESTClient(final)
	if err != nil {
		return nil, err
	}
	return &Source{cfg: final, rest: restClient}, nil
}

func newRESTClient(cfg Config) (*gateapi.APIClient, error) {
	conf := gateapi.NewConfiguration()
	conf.BasePath = cfg.RESTBaseURL

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.ProxyEnabled && cfg.RESTProxyURL != "" {
		proxyURL, err := url.Parse(cfg.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid gate REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	conf.HTTPClient = httpClient
	return gateapi.NewAPIClient(conf), nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if s == nil || s.rest == nil {
		return nil, fmt.Errorf("gate source not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > gateMaxHistoryLimit {
		limit = gateMaxHistoryLimit
	}
	contract := symbolpkg.Gate.ToExchange(symbol)
	if contract == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	opts := &gateapi.ListFuturesCandlesticksOpts{
		Limit:    optional.NewInt32(int32(limit)),
		Interval: optional.NewString(interval),
	}
	kls, _, err := s.rest.FuturesApi.ListFuturesCandlesticks(ctx, gateSettle, contract, opts)
	if err != nil {
		logger.Errorf("[gate] fetch kline failed %s %s limit=%d: %v", contract, interval, limit, err)
		return nil, fmt.Errorf("candlesticks %s %s: %w", contract, interval, err)
	}
	dur, durOK := scheduler.ParseIntervalDuration(interval)
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		openTime := int64(kl.T * 1000)
		closeTime := openTime
		if durOK {
			closeTime = openTime + dur.Milliseconds() - 1
		}
		out = append(out, market.Candle{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Open:      parseFloat(kl.O),
			High:      parseFloat(kl.H),
			Low:       parseFloat(kl.L),
			Close:     parseFloat(kl.C),
			// Sum 为计价币成交额；合约张数 V 与 Binance 的 base 成交量不可比
			Volume: parseFloat(kl.Sum),
		})
	}
	if s.cfg.DropUnclosed && durOK {
		out = scheduler.DropUnclosedBinanceKline(out, dur)
	}
	return out, nil
}

func (s *Source) GetFundingRate(ctx context.Context, sym string) (float64, error) {
	if s == nil || s.rest == nil {
		return 0, fmt.Errorf("gate source not initialized")
	}
	contract := symbolpkg.Gate.ToExchange(sym)
	if contract == "" {
		return 0, fmt.Errorf("invalid symbol: %s", sym)
	}
	res, _, err := s.rest.FuturesApi.GetFuturesContract(ctx, gateSettle, contract)
	if err != nil {
		return 0, fmt.Errorf("contract %s: %w", contract, err)
	}
	return parseFloat(res.FundingRate), nil
}

// GetOpenInterestHistory 返回按时间升序的合约持仓统计。
func (s *Source) GetOpenInterestHistory(ctx context.Context, sym, period string, limit int) ([]market.OpenInterestPoint, error) {
	if s == nil || s.rest == nil {
		return nil, fmt.Errorf("gate source not initialized")
	}
	if limit <= 0 {
		limit = 30
	}
	if limit > gateMaxHistoryLimit {
		limit = gateMaxHistoryLimit
	}
	contract := symbolpkg.Gate.ToExchange(sym)
	period = strings.ToLower(strings.TrimSpace(period))
	if contract == "" || period == "" {
		return nil, fmt.Errorf("symbol and period are required")
	}
	opts := &gateapi.ListContractStatsOpts{
		Interval: optional.NewString(period),
		Limit:    optional.NewInt32(int32(limit)),
	}
	stats, _, err := s.rest.FuturesApi.ListContractStats(ctx, gateSettle, contract, opts)
	if err != nil {
		return nil, fmt.Errorf("contract stats %s: %w", contract, err)
	}
	points := make([]market.OpenInterestPoint, 0, len(stats))
	for _, item := range stats {
		points = append(points, market.OpenInterestPoint{
			Symbol:               contract,
			SumOpenInterest:      float64(item.OpenInterest),
			SumOpenInterestValue: item.OpenInterestUsd,
			Timestamp:            item.Time * 1000,
		})
	}
	return points, nil
}

func (s *Source) Close() error { return nil }

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
