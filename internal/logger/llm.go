package logger

import (
	"io"
	"log"
	"strings"
	"sync"

	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/jsonutil"
)

var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

// SetLLMWriter 设置 LLM 请求/响应的独立转录输出；nil 关闭转录。
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmDumpPayload = enabled
	llmMu.Unlock()
}

type llmSection struct {
	Title string
	Body  string
}

func logLLM(kind, provider, traceID string, sections []llmSection) {
	llmMu.Lock()
	out := llmLog
	llmMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM]")
	for _, tag := range []string{kind, provider, traceID} {
		if tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" {
			title = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	out.Print(b.String())
}

// LogLLMRequest 记录发送给 provider 的指令；payload 仅在开启 dump 时写出。
func LogLLMRequest(provider, traceID, instruction, payload string) {
	sections := []llmSection{{Title: "INSTRUCTION", Body: instruction}}
	llmMu.Lock()
	dump := llmDumpPayload
	llmMu.Unlock()
	if dump && strings.TrimSpace(payload) != "" {
		sections = append(sections, llmSection{Title: "PAYLOAD", Body: payload})
	}
	logLLM("request", provider, traceID, sections)
}

// LogLLMResponse 记录模型原文；开启 dump 时附带缩进后的 JSON 决策体。
func LogLLMResponse(provider, traceID, raw string) {
	sections := []llmSection{{Title: "RAW", Body: raw}}
	llmMu.Lock()
	dump := llmDumpPayload
	llmMu.Unlock()
	if obj, ok := jsonutil.ExtractObject(raw); dump && ok {
		sections = append(sections, llmSection{Title: "JSON", Body: jsonutil.Pretty(obj)})
	}
	logLLM("response", provider, traceID, sections)
}
