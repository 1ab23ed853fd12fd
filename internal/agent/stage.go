package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/snapshot"
)

type Stage string

const (
	StageSnapshot Stage = "snapshot"
	StageAccount  Stage = "account"
	StagePrompt   Stage = "prompt"
	StageRequest  Stage = "request"
	StageSanitize Stage = "sanitize"
	StageExecute  Stage = "execute"
)

// StageError 标记周期在哪个阶段失败；Err 保留原始错误链，可用 errors.Is 匹配哨兵错误。
type StageError struct {
	Stage   Stage
	TraceID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cycle %s failed at %s: %v", e.TraceID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Kind 返回错误类别，用于日志与指标标签。
func (e *StageError) Kind() string {
	return errorKind(e.Err)
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, snapshot.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, decision.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, decision.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, decision.ErrInvalidDecision):
		return "invalid_decision"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
