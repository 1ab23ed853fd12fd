package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"

	"github.com/shopspring/decimal"
)

// DryRunExecutor 在内存中模拟保证金账户，不向任何交易所下单。
// 开仓占用 available*portion 的保证金，名义价值为保证金*杠杆；平仓时按参考价结算盈亏。
type DryRunExecutor struct {
	quote  string
	prices PriceQuoter
	nowFn  func() time.Time

	mu        sync.Mutex
	balance   decimal.Decimal
	available decimal.Decimal
	positions map[string]*Position
}

func NewDryRunExecutor(quote string, balance float64, prices PriceQuoter) *DryRunExecutor {
	if quote == "" {
		quote = "USDT"
	}
	start := decimal.NewFromFloat(balance)
	return &DryRunExecutor{
		quote:     strings.ToUpper(quote),
		prices:    prices,
		nowFn:     time.Now,
		balance:   start,
		available: start,
		positions: make(map[string]*Position),
	}
}

func (e *DryRunExecutor) Name() string { return "dry-run" }

func (e *DryRunExecutor) AccountStatus(ctx context.Context) (AccountStatus, error) {
	if err := ctx.Err(); err != nil {
		return AccountStatus{}, err
	}
	e.mu.Lock()
	symbols := make([]string, 0, len(e.positions))
	for sym := range e.positions {
		symbols = append(symbols, sym)
	}
	e.mu.Unlock()
	sort.Strings(symbols)

	// 价格查询不持锁。
	marks := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if e.prices == nil {
			break
		}
		price, err := e.prices.LastPrice(ctx, sym)
		if err != nil {
			logger.Warnf("[dry-run] mark price %s unavailable: %v", sym, err)
			continue
		}
		marks[sym] = price
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := AccountStatus{
		Quote:     e.quote,
		Balance:   e.balance.InexactFloat64(),
		Available: e.available.InexactFloat64(),
		Positions: make([]Position, 0, len(symbols)),
		UpdatedAt: e.nowFn().UTC(),
	}
	for _, sym := range symbols {
		pos, ok := e.positions[sym]
		if !ok {
			continue
		}
		if mark, ok := marks[sym]; ok {
			pos.MarkPrice = mark
			pos.UnrealizedPnL = pnl(*pos, mark).InexactFloat64()
		}
		out.Positions = append(out.Positions, *pos)
	}
	return out, nil
}

func (e *DryRunExecutor) Execute(ctx context.Context, d decision.TradeDecision, account AccountStatus) (ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecutionResult{}, err
	}
	res := ExecutionResult{
		Operation:  d.Operation,
		Symbol:     d.Symbol,
		Direction:  d.Direction,
		ExecutedAt: e.nowFn().UTC(),
	}
	switch d.Operation {
	case decision.OperationHold:
		res.Message = "hold, nothing to do"
		return res, nil
	case decision.OperationOpen:
		return e.open(ctx, d, res)
	case decision.OperationClose:
		return e.close(ctx, d, res)
	default:
		return res, fmt.Errorf("unknown operation %q", d.Operation)
	}
}

func (e *DryRunExecutor) open(ctx context.Context, d decision.TradeDecision, res ExecutionResult) (ExecutionResult, error) {
	if !d.Direction.Valid() {
		return res, fmt.Errorf("open %s without direction", d.Symbol)
	}
	e.mu.Lock()
	_, exists := e.positions[d.Symbol]
	e.mu.Unlock()
	if exists {
		return res, fmt.Errorf("%w: %s", ErrPositionExists, d.Symbol)
	}
	price, err := e.price(ctx, d.Symbol)
	if err != nil {
		return res, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.positions[d.Symbol]; exists {
		return res, fmt.Errorf("%w: %s", ErrPositionExists, d.Symbol)
	}
	margin := e.available.Mul(decimal.NewFromFloat(d.TargetPortionOfBalance))
	if !margin.IsPositive() {
		return res, fmt.Errorf("%w: margin %s", ErrInsufficientFunds, margin.StringFixed(2))
	}
	leverage := decimal.NewFromFloat(d.Leverage)
	notional := margin.Mul(leverage)
	qty := notional.Div(decimal.NewFromFloat(price))

	e.available = e.available.Sub(margin)
	e.positions[d.Symbol] = &Position{
		Symbol:     d.Symbol,
		Side:       d.Direction,
		Quantity:   qty.InexactFloat64(),
		EntryPrice: price,
		MarkPrice:  price,
		Leverage:   d.Leverage,
		Margin:     margin.InexactFloat64(),
		OpenedAt:   res.ExecutedAt,
	}
	res.Executed = true
	res.Price = price
	res.Quantity = qty.InexactFloat64()
	res.Notional = notional.InexactFloat64()
	res.Margin = margin.InexactFloat64()
	res.Message = fmt.Sprintf("opened %s %s qty=%s @ %.4f", d.Direction, d.Symbol, qty.StringFixed(6), price)
	logger.Infof("[dry-run] %s, margin=%s %s leverage=%.1fx", res.Message, margin.StringFixed(2), e.quote, d.Leverage)
	return res, nil
}

func (e *DryRunExecutor) close(ctx context.Context, d decision.TradeDecision, res ExecutionResult) (ExecutionResult, error) {
	e.mu.Lock()
	pos, ok := e.positions[d.Symbol]
	e.mu.Unlock()
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrNoPosition, d.Symbol)
	}
	price, err := e.price(ctx, d.Symbol)
	if err != nil {
		return res, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, still := e.positions[d.Symbol]; !still {
		return res, fmt.Errorf("%w: %s", ErrNoPosition, d.Symbol)
	}
	realized := pnl(*pos, price)
	margin := decimal.NewFromFloat(pos.Margin)
	e.available = e.available.Add(margin).Add(realized)
	e.balance = e.balance.Add(realized)
	delete(e.positions, d.Symbol)

	res.Executed = true
	res.Direction = pos.Side
	res.Price = price
	res.Quantity = pos.Quantity
	res.Margin = pos.Margin
	res.RealizedPnL = realized.InexactFloat64()
	res.Message = fmt.Sprintf("closed %s %s @ %.4f pnl=%s", pos.Side, d.Symbol, price, realized.StringFixed(2))
	logger.Infof("[dry-run] %s %s", res.Message, e.quote)
	return res, nil
}

func (e *DryRunExecutor) price(ctx context.Context, ticker string) (float64, error) {
	if e.prices == nil {
		return 0, ErrNoPrice
	}
	price, err := e.prices.LastPrice(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: %s price %.8f", ErrNoPrice, ticker, price)
	}
	return price, nil
}

func pnl(pos Position, price float64) decimal.Decimal {
	diff := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(pos.EntryPrice))
	if pos.Side == decision.DirectionShort {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromFloat(pos.Quantity))
}

var _ Executor = (*DryRunExecutor)(nil)
