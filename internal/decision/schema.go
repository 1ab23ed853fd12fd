package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const SchemaName = "trade_operation"

// ResponseSchema 构造交易决策的 JSON Schema。
// strict=true 时所有字段都列为 required（direction 允许 null），满足 OpenAI strict 模式要求。
func ResponseSchema(symbols []string, strict bool) map[string]any {
	enum := make([]any, 0, len(symbols))
	for _, s := range symbols {
		enum = append(enum, s)
	}
	required := []any{"operation", "symbol", "target_portion_of_balance", "leverage", "reason"}
	if strict {
		required = []any{"operation", "symbol", "direction", "target_portion_of_balance", "leverage", "reason"}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"description": "Type of trading operation to perform",
				"enum":        []any{"open", "close", "hold"},
			},
			"symbol": map[string]any{
				"type":        "string",
				"description": "The cryptocurrency symbol to act on",
				"enum":        enum,
			},
			"direction": map[string]any{
				"type":        []any{"string", "null"},
				"description": "Trade direction: long or short. Required for open/close, null for hold.",
				"enum":        []any{"long", "short", nil},
			},
			"target_portion_of_balance": map[string]any{
				"type":        "number",
				"description": "Fraction 0.0-1.0",
				"minimum":     0,
				"maximum":     1,
			},
			"leverage": map[string]any{
				"type":        "number",
				"description": "Leverage 1-10 (only for open)",
				"minimum":     1,
				"maximum":     10,
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Brief explanation",
				"minLength":   1,
				"maxLength":   MaxReasonLength,
			},
		},
		"required":             required,
		"additionalProperties": false,
	}
}

// Schema 持有对外声明的 schema 以及编译后的校验器。
type Schema struct {
	symbols  []string
	compiled *jsonschema.Schema
}

func NewSchema(symbols []string) (*Schema, error) {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	compiled, err := compileSchema(ResponseSchema(symbols, false))
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	return &Schema{symbols: append([]string(nil), symbols...), compiled: compiled}, nil
}

func (s *Schema) Document(strict bool) map[string]any {
	return ResponseSchema(s.symbols, strict)
}

// Text 返回 schema 的紧凑 JSON，用于嵌入不支持结构化输出的提示词。
func (s *Schema) Text() string {
	raw, err := json.Marshal(s.Document(false))
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (s *Schema) Validate(d TradeDecision) error {
	if err := s.compiled.Validate(d.document()); err != nil {
		return invalid("schema", "%v", err)
	}
	return nil
}

func compileSchema(doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("decision.json")
}
