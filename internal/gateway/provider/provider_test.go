package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const holdJSON = `{"operation":"hold","symbol":"BTC","direction":null,"target_portion_of_balance":0,"leverage":1,"reason":"no signal"}`

func testSchema(t *testing.T) *decision.Schema {
	t.Helper()
	s, err := decision.NewSchema(nil)
	require.NoError(t, err)
	return s
}

func responsesServer(t *testing.T, status int, body string, inspect func(r *http.Request, body []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, raw)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func responsesCfg(url string) Config {
	return Config{ID: "openai", Kind: KindResponses, APIURL: url, APIKey: "sk-test-1234", Model: "gpt-5.1", Enabled: true}
}

func TestResponsesStrategy_StructuredOutput(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"output": []any{
			map[string]any{"type": "reasoning", "summary": []any{}},
			map[string]any{"type": "message", "content": []any{
				map[string]any{"type": "output_text", "text": holdJSON},
			}},
		},
	})
	srv := responsesServer(t, http.StatusOK, string(body), func(r *http.Request, raw []byte) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-1234", r.Header.Get("Authorization"))
		assert.Equal(t, "gpt-5.1", gjson.GetBytes(raw, "model").String())
		assert.Equal(t, "context", gjson.GetBytes(raw, "input").String())
		assert.Equal(t, "json_schema", gjson.GetBytes(raw, "text.format.type").String())
		assert.True(t, gjson.GetBytes(raw, "text.format.strict").Bool())
		assert.Contains(t, gjson.GetBytes(raw, "text.format.schema.required").Raw, "direction")
	})

	s := NewResponsesStrategy(responsesCfg(srv.URL+"/v1/"), testSchema(t))
	require.True(t, s.Available())
	resp, err := s.Request(context.Background(), decision.Request{TraceID: "t1", Instruction: "context"})
	require.NoError(t, err)
	assert.Equal(t, decision.KindStructured, resp.Kind)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "hold", resp.Draft.Operation)
}

func TestResponsesStrategy_OutputTextShortcut(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"output_text": "```json\n" + holdJSON + "\n```"})
	srv := responsesServer(t, http.StatusOK, string(body), nil)
	resp, err := NewResponsesStrategy(responsesCfg(srv.URL), testSchema(t)).Request(context.Background(), decision.Request{Instruction: "x"})
	require.NoError(t, err)
	assert.Equal(t, decision.KindText, resp.Kind)
	structured, err := resp.Structured()
	require.NoError(t, err)
	assert.Equal(t, "BTC", structured.Draft.Symbol)
}

func TestResponsesStrategy_Unsupported(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"not found":          {http.StatusNotFound, `{"error":{"message":"Unknown endpoint"}}`},
		"method not allowed": {http.StatusMethodNotAllowed, ``},
		"format param":       {http.StatusBadRequest, `{"error":{"message":"Invalid value","param":"text.format"}}`},
		"schema message":     {http.StatusBadRequest, `{"error":{"message":"json_schema is not supported for this model"}}`},
		"no output text":     {http.StatusOK, `{"output":[]}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := responsesServer(t, tc.status, tc.body, nil)
			_, err := NewResponsesStrategy(responsesCfg(srv.URL), testSchema(t)).Request(context.Background(), decision.Request{Instruction: "x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestResponsesStrategy_ServerError(t *testing.T) {
	srv := responsesServer(t, http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`, nil)
	_, err := NewResponsesStrategy(responsesCfg(srv.URL), testSchema(t)).Request(context.Background(), decision.Request{Instruction: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupported))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "overloaded", se.Message)
}

func TestResponsesStrategy_NotConfigured(t *testing.T) {
	cfg := responsesCfg("http://127.0.0.1:1")
	cfg.APIKey = ""
	s := NewResponsesStrategy(cfg, testSchema(t))
	assert.False(t, s.Available())
	_, err := s.Request(context.Background(), decision.Request{Instruction: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChatStrategy_Request(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		raw, _ := io.ReadAll(r.Body)
		assert.Equal(t, "sonar", gjson.GetBytes(raw, "model").String())
		assert.Equal(t, ChatSystemPrompt, gjson.GetBytes(raw, "messages.0.content").String())
		user := gjson.GetBytes(raw, "messages.1.content").String()
		assert.Contains(t, user, "market context")
		assert.Contains(t, user, "Respond with JSON schema:")
		assert.Contains(t, user, `"target_portion_of_balance"`)
		assert.Equal(t, int64(1000), gjson.GetBytes(raw, "max_tokens").Int())

		w.Header().Set("Content-Type", "application/json")
		out, _ := json.Marshal(map[string]any{
			"id":      "c1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": "```json\n" + holdJSON + "\n```"}}},
		})
		_, _ = w.Write(out)
	}))
	defer srv.Close()

	s := NewChatStrategy(Config{ID: "pplx", Kind: KindChat, APIURL: srv.URL, APIKey: "k", Model: "sonar", Enabled: true, Headers: map[string]string{"X-Test": "yes"}}, testSchema(t))
	resp, err := s.Request(context.Background(), decision.Request{Instruction: "market context"})
	require.NoError(t, err)
	assert.Equal(t, decision.KindText, resp.Kind)
	structured, err := resp.Structured()
	require.NoError(t, err)
	assert.Equal(t, "no signal", structured.Draft.Reason)
}

func TestChatStrategy_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"down","type":"server_error"}}`))
	}))
	defer srv.Close()

	s := NewChatStrategy(Config{ID: "chat", APIURL: srv.URL, APIKey: "k", Model: "gpt-4", Enabled: true}, testSchema(t))
	_, err := s.Request(context.Background(), decision.Request{Instruction: "x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestBuildStrategies(t *testing.T) {
	cfgs := []Config{
		{ID: "a", APIURL: "https://api.openai.com/v1", APIKey: "k", Model: "gpt-5.1", Enabled: true},
		{ID: "off", Enabled: false},
		{ID: "b", APIURL: "https://api.perplexity.ai", APIKey: "k", Model: "sonar", Enabled: true},
		{Kind: KindChat, APIKey: "k", Model: "gpt-4", Enabled: true},
	}
	out, err := BuildStrategies(cfgs, testSchema(t))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, KindResponses, out[0].Kind())
	assert.Equal(t, KindChat, out[1].Kind())
	assert.Equal(t, "chat:gpt-4", out[2].ID())

	_, err = BuildStrategies([]Config{{ID: "x", Kind: "grpc", Enabled: true}}, testSchema(t))
	assert.Error(t, err)
}

func TestMaskHeaders(t *testing.T) {
	h := maskHeaders("sk-abcdef", map[string]string{"X-Api-Key": "secretvalue", "X-Trace": "plain"})
	assert.Equal(t, "Bearer ****cdef", h["Authorization"])
	assert.Equal(t, "****alue", h["X-Api-Key"])
	assert.Equal(t, "plain", h["X-Trace"])
}
