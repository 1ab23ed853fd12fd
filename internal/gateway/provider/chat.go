package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"

	openai "github.com/sashabaranov/go-openai"
)

// ChatSystemPrompt 是聊天补全接口使用的固定系统提示；schema 无法在服务端强制，只能写进提示词。
const ChatSystemPrompt = "You are a trading agent. Respond ONLY with valid JSON matching the provided schema. " +
	"No markdown, no extra text. " +
	"IMPORTANT: If operation is 'hold', you can omit or set direction to null. " +
	"For 'open' and 'close', direction MUST be 'long' or 'short'."

const (
	defaultChatTemperature = 0.7
	defaultChatMaxTokens   = 1000
)

// ChatStrategy 兼容 OpenAI / Perplexity 等 /chat/completions 接口。
type ChatStrategy struct {
	cfg    Config
	schema *decision.Schema
	client *openai.Client
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

func NewChatStrategy(cfg Config, schema *decision.Schema) *ChatStrategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultChatTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultChatMaxTokens
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	if base != "" {
		oc.BaseURL = base
	}
	httpc := &http.Client{Timeout: cfg.Timeout}
	if len(cfg.Headers) > 0 {
		httpc.Transport = &headerTransport{base: http.DefaultTransport, headers: cfg.Headers}
	}
	oc.HTTPClient = httpc
	return &ChatStrategy{cfg: cfg, schema: schema, client: openai.NewClientWithConfig(oc)}
}

func (s *ChatStrategy) ID() string      { return s.cfg.ID }
func (s *ChatStrategy) Kind() Kind      { return KindChat }
func (s *ChatStrategy) Available() bool { return s.cfg.available() && s.schema != nil }

func (s *ChatStrategy) Request(ctx context.Context, req decision.Request) (decision.RawResponse, error) {
	if !s.Available() {
		return decision.RawResponse{}, fmt.Errorf("%s: %w", s.cfg.ID, ErrNotConfigured)
	}
	user := req.Instruction + "\n\nRespond with JSON schema: " + s.schema.Text()
	logger.Debugf("[AI] 请求: chat %s model=%s headers=%v, trace=%s", s.cfg.ID, s.cfg.Model, maskHeaders(s.cfg.APIKey, s.cfg.Headers), req.TraceID)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: ChatSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: float32(s.cfg.Temperature),
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return decision.RawResponse{}, &StatusError{Provider: s.cfg.ID, Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return decision.RawResponse{}, fmt.Errorf("%s: %w", s.cfg.ID, err)
	}
	if len(resp.Choices) == 0 {
		return decision.RawResponse{}, fmt.Errorf("%s: empty choices", s.cfg.ID)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return decision.RawResponse{}, fmt.Errorf("%s: empty response content", s.cfg.ID)
	}
	return decision.TextResponse(s.cfg.ID, content), nil
}
