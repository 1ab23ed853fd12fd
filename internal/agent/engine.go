package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/feeds"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/exchange"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/notifier"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/symbol"
	"github.com/Luigik28/rizzo-trading-agent/internal/prompt"
	"github.com/Luigik28/rizzo-trading-agent/internal/scheduler"
	"github.com/Luigik28/rizzo-trading-agent/internal/snapshot"
	"github.com/Luigik28/rizzo-trading-agent/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// 固定出现在上下文中的段落；feed 的其它 section 按字母序追加在后面。
var fixedSections = []string{"news", "sentiment", "forecast"}

type SnapshotBuilder interface {
	BuildAll(ctx context.Context, tickers []string) ([]snapshot.MarketSnapshot, error)
}

type DecisionRequester interface {
	RequestDecision(ctx context.Context, req decision.Request) (decision.RawResponse, error)
}

type DecisionSanitizer interface {
	Sanitize(raw decision.RawResponse) (decision.TradeDecision, error)
}

type PromptRenderer interface {
	Render(d prompt.Data) (string, error)
}

// Recorder 持久化周期结果；写入失败只告警，不影响周期结果。
type Recorder interface {
	LogAccountStatus(ctx context.Context, rec store.AccountRecord) error
	LogOperation(ctx context.Context, rec store.OperationRecord) error
	LogError(ctx context.Context, rec store.ErrorRecord) error
}

// Schedule 控制周期的触发方式。
type Schedule struct {
	Continuous     bool
	Interval       time.Duration
	Offset         time.Duration
	Align          bool
	RunImmediately bool
}

type EngineParams struct {
	Tickers     []string
	Snapshots   SnapshotBuilder
	Feeds       []feeds.Feed
	FeedTimeout time.Duration
	Prompts     PromptRenderer
	Requester   DecisionRequester
	Sanitizer   DecisionSanitizer
	Executor    exchange.Executor
	Recorder    Recorder
	Metrics     *Metrics
	Last        *LastOutcome
	Schedule    Schedule

	// Notifier 可选；为空时不推送。
	Notifier     notifier.TextNotifier
	NotifyPolicy NotifyPolicy
}

// Engine 执行决策周期：快照 → 提示词 → 模型请求 → 校验 → 执行 → 记录。
// 每轮的快照、请求、响应与决策都是新建的，不跨周期共享。
type Engine struct {
	tickers     []string
	snapshots   SnapshotBuilder
	feeds       []feeds.Feed
	feedTimeout time.Duration
	prompts     PromptRenderer
	requester   DecisionRequester
	sanitizer   DecisionSanitizer
	executor    exchange.Executor
	recorder    Recorder
	metrics     *Metrics
	last        *LastOutcome
	schedule    Schedule

	notifier     notifier.TextNotifier
	notifyPolicy NotifyPolicy

	nowFn   func() time.Time
	traceFn func() string
}

func NewEngine(p EngineParams) (*Engine, error) {
	switch {
	case p.Snapshots == nil:
		return nil, fmt.Errorf("agent: snapshot builder is required")
	case p.Prompts == nil:
		return nil, fmt.Errorf("agent: prompt renderer is required")
	case p.Requester == nil:
		return nil, fmt.Errorf("agent: decision requester is required")
	case p.Sanitizer == nil:
		return nil, fmt.Errorf("agent: decision sanitizer is required")
	case p.Executor == nil:
		return nil, fmt.Errorf("agent: executor is required")
	}
	tickers := symbol.NormalizeTickers(p.Tickers)
	if len(tickers) == 0 {
		tickers = append([]string(nil), decision.DefaultSymbols...)
	}
	if p.FeedTimeout <= 0 {
		p.FeedTimeout = 15 * time.Second
	}
	if p.Last == nil {
		p.Last = NewLastOutcome(0)
	}
	return &Engine{
		tickers:     tickers,
		snapshots:   p.Snapshots,
		feeds:       p.Feeds,
		feedTimeout: p.FeedTimeout,
		prompts:     p.Prompts,
		requester:   p.Requester,
		sanitizer:   p.Sanitizer,
		executor:    p.Executor,
		recorder:    p.Recorder,
		metrics:     p.Metrics,
		last:        p.Last,
		schedule:    p.Schedule,
		nowFn:       time.Now,
		traceFn:     uuid.NewString,

		notifier:     p.Notifier,
		notifyPolicy: p.NotifyPolicy,
	}, nil
}

func (e *Engine) Tickers() []string { return append([]string(nil), e.tickers...) }

func (e *Engine) Last() *LastOutcome { return e.last }

// Run 在连续模式下按 Schedule 循环直到 ctx 结束；否则只执行一轮并返回该轮错误。
func (e *Engine) Run(ctx context.Context) error {
	sched := scheduler.New("cycle", e.schedule.Interval, e.schedule.Offset)
	sched.Align = e.schedule.Align
	sched.RunImmediately = e.schedule.RunImmediately
	task := func(ctx context.Context) error {
		_, err := e.RunCycle(ctx)
		return err
	}
	if !e.schedule.Continuous {
		logger.Infof("Engine: single cycle mode tickers=%v", e.tickers)
		return sched.RunOnce(ctx, task)
	}
	logger.Infof("Engine: continuous mode tickers=%v interval=%s", e.tickers, e.schedule.Interval)
	sched.Start(ctx, task)
	logger.Infof("Engine: stopped")
	return nil
}

// cycle 保存一轮周期中已经收集到的数据，失败时作为错误上下文落库。
type cycle struct {
	traceID  string
	started  time.Time
	snaps    []snapshot.MarketSnapshot
	feeds    []feeds.Result
	account  exchange.AccountStatus
	system   string
	raw      decision.RawResponse
	decision *decision.TradeDecision
	warnings []string
}

// RunCycle 执行一轮完整周期。失败时返回 *StageError，并已写入 Recorder.LogError。
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	c := &cycle{traceID: e.traceFn(), started: e.nowFn()}
	logger.Infof("Engine: cycle %s started tickers=%v", c.traceID, e.tickers)

	res, err := e.runCycle(ctx, c)
	res.TraceID = c.traceID
	res.StartedAt = c.started
	res.FinishedAt = e.nowFn()
	res.Tickers = e.Tickers()
	res.Warnings = c.warnings
	res.Decision = c.decision
	res.Provider = c.raw.Provider
	elapsed := res.FinishedAt.Sub(c.started)

	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			se = &StageError{TraceID: c.traceID, Err: err}
		}
		res.Stage = se.Stage
		res.Error = se.Error()
		logger.Errorf("Engine: %v", se)
		e.logError(ctx, c, se)
		e.metrics.observeCycle(se, elapsed)
		e.last.Set(res)
		e.notify(ctx, res)
		return res, se
	}
	logger.Infof("Engine: cycle %s finished in %s", c.traceID, elapsed.Truncate(time.Millisecond))
	e.metrics.observeCycle(nil, elapsed)
	e.last.Set(res)
	e.notify(ctx, res)
	return res, nil
}

func (e *Engine) runCycle(ctx context.Context, c *cycle) (CycleResult, error) {
	var res CycleResult
	fail := func(stage Stage, err error) (CycleResult, error) {
		return res, &StageError{Stage: stage, TraceID: c.traceID, Err: err}
	}

	// 快照与外部 feed 并发获取；feed 失败不会中断周期。
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snaps, err := e.snapshots.BuildAll(gctx, e.tickers)
		if err != nil {
			return err
		}
		c.snaps = snaps
		return nil
	})
	g.Go(func() error {
		c.feeds = feeds.Collect(gctx, e.feeds, e.feedTimeout)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fail(StageSnapshot, err)
	}
	for _, s := range c.snaps {
		for _, w := range s.Warnings {
			c.warnings = append(c.warnings, s.Ticker+": "+w)
		}
	}
	for _, r := range c.feeds {
		if r.Err != nil {
			c.warnings = append(c.warnings, r.Err.Error())
		}
	}

	account, err := e.executor.AccountStatus(ctx)
	if err != nil {
		return fail(StageAccount, err)
	}
	c.account = account
	e.record(ctx, "account", func(rctx context.Context) error {
		return e.recorder.LogAccountStatus(rctx, store.AccountRecord{
			TraceID:   c.traceID,
			Quote:     account.Quote,
			Balance:   account.Balance,
			Available: account.Available,
			Positions: account.Positions,
			At:        account.UpdatedAt,
		})
	})

	system, err := e.renderPrompt(c)
	if err != nil {
		return fail(StagePrompt, err)
	}
	c.system = system

	raw, err := e.requester.RequestDecision(ctx, decision.Request{TraceID: c.traceID, Instruction: system})
	if err != nil {
		return fail(StageRequest, err)
	}
	c.raw = raw

	dec, err := e.sanitizer.Sanitize(raw)
	if err != nil {
		return fail(StageSanitize, err)
	}
	c.decision = &dec
	e.metrics.observeDecision(string(dec.Operation), dec.Symbol)
	logger.Infof("Engine: cycle %s decision %s %s direction=%q portion=%.3f leverage=%.1f provider=%s reason=%q",
		c.traceID, dec.Operation, dec.Symbol, dec.Direction, dec.TargetPortionOfBalance, dec.Leverage, raw.Provider, dec.Reason)

	// 取消后绝不执行。
	if err := ctx.Err(); err != nil {
		return fail(StageExecute, err)
	}
	exec, err := e.executor.Execute(ctx, dec, account)
	if err != nil {
		return fail(StageExecute, err)
	}
	res.Execution = &exec

	e.record(ctx, "operation", func(rctx context.Context) error {
		return e.recorder.LogOperation(rctx, e.operationRecord(c, exec))
	})
	return res, nil
}

func (e *Engine) renderPrompt(c *cycle) (string, error) {
	portfolio, err := json.MarshalIndent(c.account, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode account: %w", err)
	}
	bySection := feeds.BySection(c.feeds)
	sections := []prompt.Section{{Tag: "indicators", Body: snapshot.RenderAll(c.snaps)}}
	for _, tag := range fixedSections {
		sections = append(sections, prompt.Section{Tag: tag, Body: bySection[tag]})
	}
	extra := make([]string, 0, len(bySection))
	for tag := range bySection {
		if !isFixedSection(tag) {
			extra = append(extra, tag)
		}
	}
	sort.Strings(extra)
	for _, tag := range extra {
		sections = append(sections, prompt.Section{Tag: tag, Body: bySection[tag]})
	}
	return e.prompts.Render(prompt.Data{
		Portfolio: string(portfolio),
		Context:   prompt.ComposeContext(sections...),
		Tickers:   e.tickers,
		Now:       c.started,
	})
}

func (e *Engine) operationRecord(c *cycle, exec exchange.ExecutionResult) store.OperationRecord {
	dec := c.decision
	indicators, err := snapshot.JSON(c.snaps)
	if err != nil {
		logger.Warnf("Engine: encode snapshots failed: %v", err)
	}
	return store.OperationRecord{
		TraceID:      c.traceID,
		Provider:     c.raw.Provider,
		Operation:    string(dec.Operation),
		Symbol:       dec.Symbol,
		Direction:    string(dec.Direction),
		Portion:      dec.TargetPortionOfBalance,
		Leverage:     dec.Leverage,
		Reason:       dec.Reason,
		Executed:     exec.Executed,
		Decision:     dec,
		Execution:    exec,
		Indicators:   indicators,
		Feeds:        feedTexts(c.feeds),
		SystemPrompt: c.system,
		RawResponse:  c.raw.Text,
		At:           exec.ExecutedAt,
	}
}

func (e *Engine) logError(ctx context.Context, c *cycle, se *StageError) {
	details := map[string]any{
		"tickers":  e.tickers,
		"warnings": c.warnings,
	}
	if len(c.snaps) > 0 {
		details["snapshots"] = c.snaps
	}
	if c.system != "" {
		details["system_prompt"] = c.system
	}
	if c.raw.Provider != "" {
		details["provider"] = c.raw.Provider
		details["raw_response"] = c.raw.Text
	}
	if c.decision != nil {
		details["decision"] = c.decision
	}
	e.record(ctx, "error", func(rctx context.Context) error {
		return e.recorder.LogError(rctx, store.ErrorRecord{
			TraceID: c.traceID,
			Stage:   string(se.Stage),
			Kind:    se.Kind(),
			Message: se.Err.Error(),
			Context: details,
			At:      e.nowFn(),
		})
	})
}

// record 使用脱离取消的 ctx 写库，保证被取消的周期也能留下记录。
func (e *Engine) record(ctx context.Context, what string, fn func(context.Context) error) {
	if e.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := fn(rctx); err != nil {
		logger.Warnf("Engine: record %s failed: %v", what, err)
	}
}

func isFixedSection(tag string) bool {
	for _, s := range fixedSections {
		if strings.EqualFold(s, tag) {
			return true
		}
	}
	return false
}

func feedTexts(results []feeds.Result) map[string]string {
	out := make(map[string]string, len(results))
	for _, r := range results {
		if r.Err != nil {
			out[r.Name] = "n/a"
			continue
		}
		out[r.Name] = r.Text
	}
	return out
}
