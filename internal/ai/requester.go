package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/provider"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/circuit"
	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/text"
)

const rawPreviewRunes = 2000

// Observer 接收每次调用的结果，用于指标统计。
type Observer interface {
	ObserveAttempt(providerID string, outcome Outcome, elapsed time.Duration)
}

// BreakerObserver 可由 Observer 额外实现，用于接收各提供方熔断器的当前状态。
type BreakerObserver interface {
	ObserveBreaker(providerID string, state circuit.State)
}

type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeError       Outcome = "error"
	OutcomeMalformed   Outcome = "malformed"
)

type Options struct {
	// BreakerThreshold>0 时启用熔断：连续失败达到阈值后，在 BreakerCooldown 内视为不可用。
	BreakerThreshold int
	BreakerCooldown  time.Duration
	Observer         Observer
}

// Requester 按固定顺序依次尝试提供方，首个 2xx 响应即结束，不做并发或重试。
type Requester struct {
	strategies []provider.Strategy
	breakers   map[string]*circuit.CircuitBreaker
	observer   Observer
}

func NewRequester(strategies []provider.Strategy, opts Options) *Requester {
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 10 * time.Minute
	}
	r := &Requester{
		strategies: strategies,
		breakers:   make(map[string]*circuit.CircuitBreaker, len(strategies)),
		observer:   opts.Observer,
	}
	bo, _ := opts.Observer.(BreakerObserver)
	for _, s := range strategies {
		id := s.ID()
		cb := circuit.NewCircuitBreaker("ai:"+id, opts.BreakerThreshold, opts.BreakerCooldown)
		if bo != nil && opts.BreakerThreshold > 0 {
			bo.ObserveBreaker(id, circuit.StateClosed)
			// 回调在独立 goroutine 中执行，读取当前状态以免乱序覆盖。
			cb.SetStateChangeHandler(func(name string, from, to circuit.State) {
				logger.Warnf("[AI] breaker %s: %s -> %s", name, from, to)
				bo.ObserveBreaker(id, cb.State())
			})
		}
		r.breakers[id] = cb
	}
	return r
}

// Providers 返回配置顺序下的提供方 ID。
func (r *Requester) Providers() []string {
	out := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s.ID())
	}
	return out
}

// RequestDecision 返回的响应一定是 Structured。
// 全部失败时返回 decision.ErrProviderUnavailable（附带每次尝试的原因）；
// 首个成功响应无法解析时返回 decision.ErrMalformedResponse，不再尝试后续提供方。
func (r *Requester) RequestDecision(ctx context.Context, req decision.Request) (decision.RawResponse, error) {
	if req.Empty() {
		return decision.RawResponse{}, fmt.Errorf("decision request has no instruction")
	}
	logger.LogLLMRequest("chain", req.TraceID, fmt.Sprintf("providers=%v chars=%d", r.Providers(), len(req.Instruction)), req.Instruction)

	causes := []error{decision.ErrProviderUnavailable}
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return decision.RawResponse{}, err
		}
		id := s.ID()
		breaker := r.breakers[id]
		if !s.Available() || !breaker.Allow() {
			logger.Warnf("[AI] provider %s unavailable, skipping (breaker=%s)", id, breaker.State())
			causes = append(causes, fmt.Errorf("%s: skipped, unavailable", id))
			r.observe(id, OutcomeSkipped, 0)
			continue
		}

		started := time.Now()
		resp, err := s.Request(ctx, req)
		elapsed := time.Since(started)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return decision.RawResponse{}, ctxErr
			}
			// 超时、5xx 与格式不兼容一样，都交给下一个提供方。
			breaker.RecordFailure()
			outcome := OutcomeError
			if errors.Is(err, provider.ErrUnsupported) {
				outcome = OutcomeUnsupported
			}
			logger.Warnf("[AI] provider %s (%s) failed after %s, falling back: %v", id, s.Kind(), elapsed.Truncate(time.Millisecond), err)
			causes = append(causes, err)
			r.observe(id, outcome, elapsed)
			continue
		}
		breaker.RecordSuccess()
		logger.LogLLMResponse(id, req.TraceID, resp.Text)

		structured, err := resp.Structured()
		if err != nil {
			logger.Errorf("[AI] provider %s returned unparseable output: %v raw=%s", id, err, text.Truncate(resp.Text, rawPreviewRunes))
			r.observe(id, OutcomeMalformed, elapsed)
			return resp, err
		}
		logger.Infof("[AI] provider %s answered in %s (%s)", id, elapsed.Truncate(time.Millisecond), resp.Kind)
		r.observe(id, OutcomeSuccess, elapsed)
		return structured, nil
	}
	if len(r.strategies) == 0 {
		causes = append(causes, errors.New("no providers configured"))
	}
	return decision.RawResponse{}, errors.Join(causes...)
}

func (r *Requester) observe(id string, outcome Outcome, elapsed time.Duration) {
	if r.observer != nil {
		r.observer.ObserveAttempt(id, outcome, elapsed)
	}
}
