package decision

import (
	"strings"
	"unicode/utf8"
)

// Sanitizer 把模型响应规范化为 TradeDecision，任何一条规则失败都不会返回部分结果。
type Sanitizer struct {
	symbols map[string]struct{}
	policy  DirectionPolicy
	schema  *Schema
}

func NewSanitizer(symbols []string, policy DirectionPolicy) (*Sanitizer, error) {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	norm := make([]string, 0, len(symbols))
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		norm = append(norm, s)
	}
	if policy == "" {
		policy = InferLong
	}
	schema, err := NewSchema(norm)
	if err != nil {
		return nil, err
	}
	return &Sanitizer{symbols: set, policy: policy, schema: schema}, nil
}

func (s *Sanitizer) Schema() *Schema { return s.schema }

func (s *Sanitizer) Policy() DirectionPolicy { return s.policy }

// Sanitize 按固定顺序执行：方向补全、hold 方向透传、operation、symbol、数值范围、reason，最后 schema 兜底。
func (s *Sanitizer) Sanitize(raw RawResponse) (TradeDecision, error) {
	structured, err := raw.Structured()
	if err != nil {
		return TradeDecision{}, err
	}
	d := structured.Draft
	out := TradeDecision{
		Operation: Operation(strings.ToLower(strings.TrimSpace(d.Operation))),
		Symbol:    strings.ToUpper(strings.TrimSpace(d.Symbol)),
	}

	dir := DirectionNone
	if d.Direction != nil {
		dir = Direction(strings.ToLower(strings.TrimSpace(*d.Direction)))
	}
	switch {
	case dir == DirectionNone && out.Operation == OperationHold:
	case dir == DirectionNone && (out.Operation == OperationOpen || out.Operation == OperationClose):
		resolved, inferred, err := s.policy.Resolve(out.Operation)
		if err != nil {
			return TradeDecision{}, err
		}
		dir, out.DirectionInferred = resolved, inferred
	case dir != DirectionNone && !dir.Valid():
		return TradeDecision{}, invalid("direction", "%q is not long/short", dir)
	}
	out.Direction = dir

	if !out.Operation.Valid() {
		return TradeDecision{}, invalid("operation", "%q is not open/close/hold", d.Operation)
	}
	if _, ok := s.symbols[out.Symbol]; !ok {
		return TradeDecision{}, invalid("symbol", "%q is not tradable", d.Symbol)
	}

	target, err := rangeCheck("target_portion_of_balance", d.TargetPortionOfBalance, 0, 1)
	if err != nil {
		return TradeDecision{}, err
	}
	leverage, err := rangeCheck("leverage", d.Leverage, 1, 10)
	if err != nil {
		return TradeDecision{}, err
	}
	out.TargetPortionOfBalance, out.Leverage = target, leverage

	if !d.ReasonIsString {
		return TradeDecision{}, invalid("reason", "must be a string")
	}
	reason := strings.TrimSpace(d.Reason)
	if reason == "" {
		return TradeDecision{}, invalid("reason", "empty")
	}
	if n := utf8.RuneCountInString(reason); n > MaxReasonLength {
		return TradeDecision{}, invalid("reason", "%d characters exceeds %d", n, MaxReasonLength)
	}
	out.Reason = reason

	if err := s.schema.Validate(out); err != nil {
		return TradeDecision{}, err
	}
	return out, nil
}

// rangeCheck 不做截断：越界说明模型输出异常。
func rangeCheck(field string, n Number, lo, hi float64) (float64, error) {
	if !n.Present {
		return 0, invalid(field, "required")
	}
	if !n.OK {
		return 0, invalid(field, "%s is not a number", n.Raw)
	}
	if n.Value < lo || n.Value > hi {
		return 0, invalid(field, "%v outside [%v, %v]", n.Value, lo, hi)
	}
	return n.Value, nil
}
