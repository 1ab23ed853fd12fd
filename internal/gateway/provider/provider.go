package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
)

// ErrUnsupported 表示端点存在但不支持该调用形态（如不支持 Responses API 或结构化输出）。
var ErrUnsupported = errors.New("provider does not support this request shape")

// ErrNotConfigured 表示缺少 key / model 等必要配置。
var ErrNotConfigured = errors.New("provider not configured")

type Kind string

const (
	KindResponses Kind = "responses"
	KindChat      Kind = "chat"
)

// Strategy 是决策请求链中的一个提供方；每次 Request 只发送一次请求，不做重试。
type Strategy interface {
	ID() string
	Kind() Kind
	Available() bool
	Request(ctx context.Context, req decision.Request) (decision.RawResponse, error)
}

// Config 描述单个提供方，启动时构建一次。
type Config struct {
	ID              string
	Kind            Kind
	APIURL          string
	APIKey          string
	Model           string
	Enabled         bool
	Headers         map[string]string
	Temperature     float64
	MaxTokens       int
	ReasoningEffort string
	Timeout         time.Duration
}

// StatusError 为非 2xx 响应。
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status=%d: %s", e.Provider, e.Code, e.Message)
}

func (c Config) available() bool {
	return c.Enabled && strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.Model) != ""
}

// maskHeaders 对可能包含敏感信息的头进行掩码，仅用于日志。
func maskHeaders(apiKey string, extra map[string]string) map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if apiKey != "" {
		out["Authorization"] = "Bearer " + maskSecret(apiKey)
	}
	for k, v := range extra {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = maskSecret(v)
		}
		out[k] = v
	}
	return out
}

func maskSecret(v string) string {
	if len(v) > 4 {
		return "****" + v[len(v)-4:]
	}
	return "****"
}
