package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/notifier"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
)

const notifyTimeout = 30 * time.Second

// NotifyPolicy 决定哪些周期结果需要推送。hold 默认不推送。
type NotifyPolicy struct {
	Holds    bool
	Failures bool
}

func (p NotifyPolicy) wants(res CycleResult) bool {
	if !res.Succeeded() {
		return p.Failures
	}
	if res.Decision == nil {
		return false
	}
	return res.Decision.Operation != decision.OperationHold || p.Holds
}

func (e *Engine) notify(ctx context.Context, res CycleResult) {
	if e.notifier == nil || !e.notifyPolicy.wants(res) {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := e.notifier.SendText(nctx, CycleMessage(res).RenderMarkdown()); err != nil {
		logger.Warnf("Engine: notify cycle %s failed: %v", res.TraceID, err)
	}
}

// CycleMessage 把周期结果转换为通知消息。
func CycleMessage(res CycleResult) notifier.StructuredMessage {
	msg := notifier.StructuredMessage{
		Footer:    "trace " + res.TraceID,
		Timestamp: res.FinishedAt,
	}
	if !res.Succeeded() {
		msg.Icon = "⚠️"
		msg.Title = fmt.Sprintf("Cycle failed at %s", res.Stage)
		msg.Sections = []notifier.MessageSection{{Title: "Error", Lines: []string{res.Error}}}
		return msg
	}
	d := res.Decision
	if d == nil {
		msg.Icon = "ℹ️"
		msg.Title = "Cycle finished without decision"
		return msg
	}
	switch d.Operation {
	case decision.OperationOpen:
		msg.Icon = "🟢"
	case decision.OperationClose:
		msg.Icon = "🔴"
	default:
		msg.Icon = "⏸"
	}
	msg.Title = strings.ToUpper(string(d.Operation)) + " " + d.Symbol
	lines := []string{fmt.Sprintf("provider: %s", res.Provider)}
	if d.Operation == decision.OperationOpen {
		dir := string(d.Direction)
		if d.DirectionInferred {
			dir += " (inferred)"
		}
		lines = append(lines,
			"direction: "+dir,
			fmt.Sprintf("portion: %.2f", d.TargetPortionOfBalance),
			fmt.Sprintf("leverage: %gx", d.Leverage),
		)
	}
	lines = append(lines, "reason: "+d.Reason)
	msg.Sections = append(msg.Sections, notifier.MessageSection{Title: "Decision", Lines: lines})
	if ex := res.Execution; ex != nil {
		execLines := []string{fmt.Sprintf("executed: %v", ex.Executed)}
		if ex.Executed && ex.Price > 0 {
			execLines = append(execLines,
				fmt.Sprintf("price: %.4f qty: %.6f", ex.Price, ex.Quantity),
				fmt.Sprintf("notional: %.2f margin: %.2f", ex.Notional, ex.Margin),
			)
		}
		if ex.RealizedPnL != 0 {
			execLines = append(execLines, fmt.Sprintf("realized pnl: %.2f", ex.RealizedPnL))
		}
		if ex.Message != "" {
			execLines = append(execLines, ex.Message)
		}
		msg.Sections = append(msg.Sections, notifier.MessageSection{Title: "Execution", Lines: execLines})
	}
	if len(res.Warnings) > 0 {
		msg.Sections = append(msg.Sections, notifier.MessageSection{Title: "Warnings", Lines: res.Warnings})
	}
	return msg
}
