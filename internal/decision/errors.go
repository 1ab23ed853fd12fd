package decision

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable 所有已配置的模型提供方都失败（连通性问题）。
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrMalformedResponse 提供方返回了 2xx，但内容无法解析为 JSON 对象（数据问题）。
	ErrMalformedResponse = errors.New("malformed response")
	// ErrInvalidDecision 可以解析，但字段不满足约束。
	ErrInvalidDecision = errors.New("invalid decision")
)

// FieldError 描述具体哪个字段不合法，errors.Is(err, ErrInvalidDecision) 为真。
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid decision: %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidDecision }

func invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
