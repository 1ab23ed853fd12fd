package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/feeds"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/exchange"
	"github.com/Luigik28/rizzo-trading-agent/internal/prompt"
	"github.com/Luigik28/rizzo-trading-agent/internal/snapshot"
	"github.com/Luigik28/rizzo-trading-agent/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSnapshots struct{ mock.Mock }

func (m *mockSnapshots) BuildAll(ctx context.Context, tickers []string) ([]snapshot.MarketSnapshot, error) {
	args := m.Called(ctx, tickers)
	snaps, _ := args.Get(0).([]snapshot.MarketSnapshot)
	return snaps, args.Error(1)
}

type mockRequester struct{ mock.Mock }

func (m *mockRequester) RequestDecision(ctx context.Context, req decision.Request) (decision.RawResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(decision.RawResponse), args.Error(1)
}

type mockExecutor struct{ mock.Mock }

func (m *mockExecutor) Name() string { return "mock" }

func (m *mockExecutor) AccountStatus(ctx context.Context) (exchange.AccountStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(exchange.AccountStatus), args.Error(1)
}

func (m *mockExecutor) Execute(ctx context.Context, d decision.TradeDecision, a exchange.AccountStatus) (exchange.ExecutionResult, error) {
	args := m.Called(ctx, d, a)
	return args.Get(0).(exchange.ExecutionResult), args.Error(1)
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) LogAccountStatus(ctx context.Context, rec store.AccountRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRecorder) LogOperation(ctx context.Context, rec store.OperationRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRecorder) LogError(ctx context.Context, rec store.ErrorRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type staticFeed struct {
	name, section, text string
	err                 error
}

func (f staticFeed) Name() string                          { return f.name }
func (f staticFeed) Section() string                       { return f.section }
func (f staticFeed) Fetch(context.Context) (string, error) { return f.text, f.err }

// cancellingRequester 在返回响应前取消周期上下文。
type cancellingRequester struct {
	cancel context.CancelFunc
	resp   decision.RawResponse
}

func (r cancellingRequester) RequestDecision(context.Context, decision.Request) (decision.RawResponse, error) {
	r.cancel()
	return r.resp, nil
}

type fixture struct {
	snaps   *mockSnapshots
	req     *mockRequester
	exec    *mockExecutor
	rec     *mockRecorder
	metrics *Metrics
	prompts *prompt.Manager
	san     *decision.Sanitizer
	account exchange.AccountStatus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pm, err := prompt.NewManager("")
	require.NoError(t, err)
	san, err := decision.NewSanitizer(nil, decision.InferLong)
	require.NoError(t, err)
	return &fixture{
		snaps:   &mockSnapshots{},
		req:     &mockRequester{},
		exec:    &mockExecutor{},
		rec:     &mockRecorder{},
		metrics: NewMetrics(prometheus.NewRegistry()),
		prompts: pm,
		san:     san,
		account: exchange.AccountStatus{Quote: "USDT", Balance: 1000, Available: 1000},
	}
}

func (f *fixture) engine(t *testing.T, requester DecisionRequester, fs ...feeds.Feed) *Engine {
	t.Helper()
	e, err := NewEngine(EngineParams{
		Tickers:   []string{"btc", "eth"},
		Snapshots: f.snaps,
		Feeds:     fs,
		Prompts:   f.prompts,
		Requester: requester,
		Sanitizer: f.san,
		Executor:  f.exec,
		Recorder:  f.rec,
		Metrics:   f.metrics,
	})
	require.NoError(t, err)
	e.traceFn = func() string { return "trace-1" }
	e.nowFn = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func testSnapshots() []snapshot.MarketSnapshot {
	return []snapshot.MarketSnapshot{
		{Ticker: "BTC", Symbol: "BTC/USDT", Warnings: []string{"funding rate unavailable"}},
		{Ticker: "ETH", Symbol: "ETH/USDT"},
	}
}

func TestRunCycle_Success(t *testing.T) {
	f := newFixture(t)
	f.snaps.On("BuildAll", mock.Anything, []string{"BTC", "ETH"}).Return(testSnapshots(), nil)
	f.exec.On("AccountStatus", mock.Anything).Return(f.account, nil)
	f.rec.On("LogAccountStatus", mock.Anything, mock.MatchedBy(func(r store.AccountRecord) bool {
		return r.TraceID == "trace-1" && r.Balance == 1000
	})).Return(nil)

	var instruction string
	f.req.On("RequestDecision", mock.Anything, mock.MatchedBy(func(r decision.Request) bool {
		instruction = r.Instruction
		return r.TraceID == "trace-1"
	})).Return(decision.TextResponse("primary", "```json\n"+`{"operation":"open","symbol":"ETH","target_portion_of_balance":0.2,"leverage":3,"reason":"trend"}`+"\n```"), nil)

	f.exec.On("Execute", mock.Anything, mock.MatchedBy(func(d decision.TradeDecision) bool {
		return d.Symbol == "ETH" && d.Direction == decision.DirectionLong && d.DirectionInferred
	}), f.account).Return(exchange.ExecutionResult{Operation: decision.OperationOpen, Symbol: "ETH", Executed: true}, nil)
	f.rec.On("LogOperation", mock.Anything, mock.MatchedBy(func(r store.OperationRecord) bool {
		return r.TraceID == "trace-1" && r.Provider == "primary" && r.Executed && r.Symbol == "ETH"
	})).Return(nil)

	e := f.engine(t, f.req,
		staticFeed{name: "headlines", section: "news", text: "ETF approved"},
		staticFeed{name: "whales", section: "whale_alerts", err: errors.New("down")},
	)
	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Succeeded())
	require.NotNil(t, res.Decision)
	assert.Equal(t, decision.OperationOpen, res.Decision.Operation)
	require.NotNil(t, res.Execution)
	assert.True(t, res.Execution.Executed)
	assert.Contains(t, res.Warnings, "BTC: funding rate unavailable")
	assert.Len(t, res.Warnings, 2)

	assert.Contains(t, instruction, "<news>\nETF approved\n</news>")
	assert.Contains(t, instruction, "<sentiment>\nn/a\n</sentiment>")
	assert.Contains(t, instruction, "<indicators>")
	assert.NotContains(t, instruction, "<whale_alerts>")

	last, ok := e.Last().Get()
	require.True(t, ok)
	assert.Equal(t, "trace-1", last.TraceID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.cycles.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.decisions.WithLabelValues("open", "ETH")))

	mock.AssertExpectationsForObjects(t, f.snaps, f.req, f.exec, f.rec)
}

func TestRunCycle_InvalidDecisionNeverExecuted(t *testing.T) {
	f := newFixture(t)
	f.snaps.On("BuildAll", mock.Anything, mock.Anything).Return(testSnapshots(), nil)
	f.exec.On("AccountStatus", mock.Anything).Return(f.account, nil)
	f.rec.On("LogAccountStatus", mock.Anything, mock.Anything).Return(nil)
	f.req.On("RequestDecision", mock.Anything, mock.Anything).
		Return(decision.TextResponse("primary", `{"operation":"open","symbol":"BTC","direction":"long","target_portion_of_balance":1.5,"leverage":3,"reason":"x"}`), nil)
	f.rec.On("LogError", mock.Anything, mock.MatchedBy(func(r store.ErrorRecord) bool {
		return r.Stage == "sanitize" && r.Kind == "invalid_decision" && r.Context["raw_response"] != nil
	})).Return(nil)

	e := f.engine(t, f.req)
	res, err := e.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, decision.ErrInvalidDecision)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSanitize, se.Stage)
	assert.Equal(t, StageSanitize, res.Stage)
	assert.True(t, strings.Contains(err.Error(), "sanitize"))

	f.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	f.rec.AssertNotCalled(t, "LogOperation", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.stageFailures.WithLabelValues("sanitize", "invalid_decision")))
}

func TestRunCycle_SnapshotFailureStopsCycle(t *testing.T) {
	f := newFixture(t)
	f.snaps.On("BuildAll", mock.Anything, mock.Anything).
		Return(nil, errors.Join(snapshot.ErrDataUnavailable, errors.New("klines timeout")))
	f.rec.On("LogError", mock.Anything, mock.MatchedBy(func(r store.ErrorRecord) bool {
		return r.Stage == "snapshot" && r.Kind == "data_unavailable"
	})).Return(nil)

	e := f.engine(t, f.req)
	_, err := e.RunCycle(context.Background())
	assert.ErrorIs(t, err, snapshot.ErrDataUnavailable)
	f.req.AssertNotCalled(t, "RequestDecision", mock.Anything, mock.Anything)
	f.exec.AssertNotCalled(t, "AccountStatus", mock.Anything)
}

func TestRunCycle_ProviderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.snaps.On("BuildAll", mock.Anything, mock.Anything).Return(testSnapshots(), nil)
	f.exec.On("AccountStatus", mock.Anything).Return(f.account, nil)
	f.rec.On("LogAccountStatus", mock.Anything, mock.Anything).Return(nil)
	f.req.On("RequestDecision", mock.Anything, mock.Anything).
		Return(decision.RawResponse{}, errors.Join(decision.ErrProviderUnavailable, errors.New("primary: 500")))
	f.rec.On("LogError", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	e := f.engine(t, f.req)
	_, err := e.RunCycle(context.Background())
	assert.ErrorIs(t, err, decision.ErrProviderUnavailable)
	f.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_CancelledBeforeExecution(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.snaps.On("BuildAll", mock.Anything, mock.Anything).Return(testSnapshots(), nil)
	f.exec.On("AccountStatus", mock.Anything).Return(f.account, nil)
	f.rec.On("LogAccountStatus", mock.Anything, mock.Anything).Return(nil)
	f.rec.On("LogError", mock.Anything, mock.MatchedBy(func(r store.ErrorRecord) bool {
		return r.Stage == "execute" && r.Kind == "cancelled"
	})).Return(nil)

	requester := cancellingRequester{
		cancel: cancel,
		resp:   decision.TextResponse("primary", `{"operation":"close","symbol":"BTC","target_portion_of_balance":0,"leverage":1,"reason":"exit"}`),
	}
	e := f.engine(t, requester)
	_, err := e.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	f.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	f.rec.AssertExpectations(t)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(EngineParams{})
	assert.Error(t, err)

	f := newFixture(t)
	e := f.engine(t, f.req)
	assert.Equal(t, []string{"BTC", "ETH"}, e.Tickers())
}

func TestLastOutcome_Recent(t *testing.T) {
	c := NewLastOutcome(2)
	_, ok := c.Get()
	assert.False(t, ok)
	c.Set(CycleResult{TraceID: "a"})
	c.Set(CycleResult{TraceID: "b"})
	c.Set(CycleResult{TraceID: "c"})
	recent := c.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].TraceID)
	assert.Equal(t, "b", recent[1].TraceID)
}
