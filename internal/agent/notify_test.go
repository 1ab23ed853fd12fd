package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
)

type captureNotifier struct {
	texts []string
	err   error
}

func (c *captureNotifier) SendText(_ context.Context, text string) error {
	c.texts = append(c.texts, text)
	return c.err
}

func TestNotifyPolicy(t *testing.T) {
	hold := CycleResult{Decision: &decision.TradeDecision{Operation: decision.OperationHold}}
	open := CycleResult{Decision: &decision.TradeDecision{Operation: decision.OperationOpen}}
	failed := CycleResult{Stage: StageRequest, Error: "boom"}

	assert.False(t, NotifyPolicy{}.wants(hold))
	assert.True(t, NotifyPolicy{Holds: true}.wants(hold))
	assert.True(t, NotifyPolicy{}.wants(open))
	assert.False(t, NotifyPolicy{}.wants(failed))
	assert.True(t, NotifyPolicy{Failures: true}.wants(failed))
}

func TestCycleMessage_Open(t *testing.T) {
	res := CycleResult{
		TraceID:    "t-1",
		FinishedAt: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
		Provider:   "openai",
		Decision: &decision.TradeDecision{
			Operation:              decision.OperationOpen,
			Symbol:                 "BTC",
			Direction:              decision.DirectionLong,
			DirectionInferred:      true,
			TargetPortionOfBalance: 0.25,
			Leverage:               3,
			Reason:                 "trend up",
		},
		Execution: &exchange.ExecutionResult{Executed: true, Price: 60000, Quantity: 0.0125, Notional: 750, Margin: 250},
	}
	text := CycleMessage(res).RenderMarkdown()
	assert.Contains(t, text, "OPEN BTC")
	assert.Contains(t, text, "direction: long (inferred)")
	assert.Contains(t, text, "leverage: 3x")
	assert.Contains(t, text, "notional: 750.00 margin: 250.00")
	assert.Contains(t, text, "trace t-1")
}

func TestEngineNotify_IgnoresSendError(t *testing.T) {
	n := &captureNotifier{err: errors.New("telegram down")}
	e := &Engine{notifier: n, notifyPolicy: NotifyPolicy{Failures: true}}

	e.notify(context.Background(), CycleResult{TraceID: "t-2", Stage: StageSnapshot, Error: "no candles"})
	e.notify(context.Background(), CycleResult{TraceID: "t-3", Decision: &decision.TradeDecision{Operation: decision.OperationHold}})

	if assert.Len(t, n.texts, 1) {
		assert.Contains(t, n.texts[0], "Cycle failed at snapshot")
		assert.Contains(t, n.texts[0], "no candles")
	}
}
