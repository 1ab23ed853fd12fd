package agent

import (
	"sync"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/exchange"
)

// CycleResult 汇总一轮周期的结果，供日志与 HTTP 只读接口展示。
type CycleResult struct {
	TraceID    string                    `json:"trace_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Tickers    []string                  `json:"tickers"`
	Warnings   []string                  `json:"warnings,omitempty"`
	Provider   string                    `json:"provider,omitempty"`
	Decision   *decision.TradeDecision   `json:"decision,omitempty"`
	Execution  *exchange.ExecutionResult `json:"execution,omitempty"`
	Stage      Stage                     `json:"failed_stage,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

func (r CycleResult) Succeeded() bool { return r.Error == "" }

// LastOutcome 缓存最近一轮周期结果，只用于观测，不参与下一轮决策。
type LastOutcome struct {
	mu     sync.RWMutex
	last   *CycleResult
	recent []CycleResult
	keep   int
}

func NewLastOutcome(keep int) *LastOutcome {
	if keep <= 0 {
		keep = 20
	}
	return &LastOutcome{keep: keep}
}

func (c *LastOutcome) Set(r CycleResult) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &r
	c.recent = append(c.recent, r)
	if len(c.recent) > c.keep {
		c.recent = append([]CycleResult(nil), c.recent[len(c.recent)-c.keep:]...)
	}
}

func (c *LastOutcome) Get() (CycleResult, bool) {
	if c == nil {
		return CycleResult{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return CycleResult{}, false
	}
	return *c.last, true
}

// Recent 返回最近的结果，最新在前。
func (c *LastOutcome) Recent() []CycleResult {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CycleResult, 0, len(c.recent))
	for i := len(c.recent) - 1; i >= 0; i-- {
		out = append(out, c.recent[i])
	}
	return out
}
