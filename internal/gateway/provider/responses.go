package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"

	"github.com/tidwall/gjson"
)

const (
	defaultOpenAIBase = "https://api.openai.com/v1"
	maxResponseBytes  = 4 << 20
)

// ResponsesStrategy 调用 OpenAI Responses API（/v1/responses），以 strict json_schema 约束输出。
type ResponsesStrategy struct {
	cfg    Config
	schema *decision.Schema
	httpc  *http.Client
	url    string
}

func NewResponsesStrategy(cfg Config, schema *decision.Schema) *ResponsesStrategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	// 规范化 BaseURL，避免把完整的 /responses 也写进配置导致重复路径
	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if base == "" {
		base = defaultOpenAIBase
	}
	base = strings.TrimSuffix(base, "/responses")
	return &ResponsesStrategy{
		cfg:    cfg,
		schema: schema,
		httpc:  &http.Client{Timeout: cfg.Timeout},
		url:    base + "/responses",
	}
}

func (s *ResponsesStrategy) ID() string      { return s.cfg.ID }
func (s *ResponsesStrategy) Kind() Kind      { return KindResponses }
func (s *ResponsesStrategy) Available() bool { return s.cfg.available() && s.schema != nil }

func (s *ResponsesStrategy) Request(ctx context.Context, req decision.Request) (decision.RawResponse, error) {
	if !s.Available() {
		return decision.RawResponse{}, fmt.Errorf("%s: %w", s.cfg.ID, ErrNotConfigured)
	}
	body := map[string]any{
		"model": s.cfg.Model,
		"input": req.Instruction,
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   decision.SchemaName,
				"strict": true,
				"schema": s.schema.Document(true),
			},
		},
		"store": false,
	}
	if effort := strings.TrimSpace(s.cfg.ReasoningEffort); effort != "" {
		body["reasoning"] = map[string]any{"effort": effort}
	}
	if s.cfg.MaxTokens > 0 {
		body["max_output_tokens"] = s.cfg.MaxTokens
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return decision.RawResponse{}, fmt.Errorf("%s: encode request: %w", s.cfg.ID, err)
	}
	logger.Debugf("[AI] 请求: POST %s, headers=%v, trace=%s", s.url, maskHeaders(s.cfg.APIKey, s.cfg.Headers), req.TraceID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return decision.RawResponse{}, fmt.Errorf("%s: build request: %w", s.cfg.ID, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	for k, v := range s.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.httpc.Do(httpReq)
	if err != nil {
		return decision.RawResponse{}, fmt.Errorf("%s: %w", s.cfg.ID, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return decision.RawResponse{}, fmt.Errorf("%s: read body: %w", s.cfg.ID, err)
	}
	if resp.StatusCode/100 != 2 {
		return decision.RawResponse{}, s.statusError(resp.StatusCode, resp.Status, raw)
	}

	text := outputText(raw)
	if strings.TrimSpace(text) == "" {
		return decision.RawResponse{}, fmt.Errorf("%s: no output text: %w", s.cfg.ID, ErrUnsupported)
	}
	// 结构化输出应为裸 JSON；不是的话交给上层按文本再解析一次
	if d, err := decision.DecodeDraft(text); err == nil {
		return decision.StructuredResponse(s.cfg.ID, text, d), nil
	}
	return decision.TextResponse(s.cfg.ID, text), nil
}

// statusError 把 404/405 以及指向 text.format / schema 参数的 400 视为接口形态不兼容。
func (s *ResponsesStrategy) statusError(code int, status string, raw []byte) error {
	msg := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String())
	param := strings.ToLower(gjson.GetBytes(raw, "error.param").String())
	if msg == "" {
		msg = status
	}
	se := &StatusError{Provider: s.cfg.ID, Code: code, Message: msg}
	switch {
	case code == http.StatusNotFound || code == http.StatusMethodNotAllowed:
		return fmt.Errorf("%w: %w", ErrUnsupported, se)
	case code == http.StatusBadRequest && mentionsFormat(param, strings.ToLower(msg)):
		return fmt.Errorf("%w: %w", ErrUnsupported, se)
	default:
		return se
	}
}

func mentionsFormat(param, msg string) bool {
	for _, key := range []string{"text.format", "response_format", "json_schema", "schema"} {
		if strings.Contains(param, key) || strings.Contains(msg, key) {
			return true
		}
	}
	return false
}

// outputText 优先使用 output_text 便捷字段，否则拼接 output[].content[] 中 type=output_text 的文本。
func outputText(raw []byte) string {
	if v := gjson.GetBytes(raw, "output_text"); v.Type == gjson.String && v.String() != "" {
		return v.String()
	}
	var b strings.Builder
	gjson.GetBytes(raw, "output").ForEach(func(_, item gjson.Result) bool {
		if t := item.Get("type").String(); t != "" && t != "message" {
			return true
		}
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "output_text" {
				b.WriteString(part.Get("text").String())
			}
			return true
		})
		return true
	})
	return b.String()
}
