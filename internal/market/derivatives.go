package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/Luigik28/rizzo-trading-agent/internal/logger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultOIPeriod = "5m"
	defaultOILimit  = 100
)

// Derivatives 是单个交易对的衍生品指标；任一字段获取失败时为 0。
type Derivatives struct {
	OpenInterestLatest  float64 `json:"open_interest_latest"`
	OpenInterestAverage float64 `json:"open_interest_average"`
	FundingRate         float64 `json:"funding_rate"`
}

// DerivativesService 在 DerivativesSource 之上提供容错查询：失败只产生告警，不会中断调用方。
type DerivativesService struct {
	source   DerivativesSource
	oiPeriod string
	oiLimit  int
}

func NewDerivativesService(source DerivativesSource, oiPeriod string, oiLimit int) *DerivativesService {
	oiPeriod = strings.ToLower(strings.TrimSpace(oiPeriod))
	if oiPeriod == "" {
		oiPeriod = defaultOIPeriod
	}
	if oiLimit <= 0 {
		oiLimit = defaultOILimit
	}
	return &DerivativesService{source: source, oiPeriod: oiPeriod, oiLimit: oiLimit}
}

// Query fetches funding and open interest concurrently. Each failing field stays 0
// and its cause is returned in the slice; the call itself never fails.
func (s *DerivativesService) Query(ctx context.Context, symbol string) (Derivatives, []error) {
	var out Derivatives
	if s == nil || s.source == nil {
		return out, []error{fmt.Errorf("derivatives source not configured")}
	}
	var (
		g          errgroup.Group
		fundingErr error
		oiErr      error
	)
	// 两路互不影响：各自记录错误并返回 nil，一路失败不取消另一路。
	g.Go(func() error {
		rate, err := s.source.GetFundingRate(ctx, symbol)
		if err != nil {
			fundingErr = fmt.Errorf("funding rate %s: %w", symbol, err)
			return nil
		}
		out.FundingRate = rate
		return nil
	})
	g.Go(func() error {
		latest, avg, err := s.openInterest(ctx, symbol)
		if err != nil {
			oiErr = fmt.Errorf("open interest %s: %w", symbol, err)
			return nil
		}
		out.OpenInterestLatest = latest
		out.OpenInterestAverage = avg
		return nil
	})
	_ = g.Wait()

	var errs []error
	for _, err := range []error{fundingErr, oiErr} {
		if err == nil {
			continue
		}
		logger.Warnf("[derivatives] %v, defaulting to 0", err)
		errs = append(errs, err)
	}
	return out, errs
}

func (s *DerivativesService) openInterest(ctx context.Context, symbol string) (latest, avg float64, err error) {
	points, err := s.source.GetOpenInterestHistory(ctx, symbol, s.oiPeriod, s.oiLimit)
	if err != nil {
		return 0, 0, err
	}
	if len(points) == 0 {
		return 0, 0, fmt.Errorf("empty open interest history")
	}
	sum := 0.0
	for _, p := range points {
		sum += p.SumOpenInterestValue
	}
	return points[len(points)-1].SumOpenInterestValue, sum / float64(len(points)), nil
}
