package decision

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Number 是模型给出的数值字段：可能缺失、为数字，或为数字字符串。
type Number struct {
	Present bool
	Value   float64
	OK      bool
	Raw     string
}

// Draft 保存从模型 JSON 中读取的半可信字段。
type Draft struct {
	Operation              string
	Symbol                 string
	Direction              *string
	TargetPortionOfBalance Number
	Leverage               Number
	Reason                 string
	ReasonIsString         bool
}

// DecodeDraft 解析单个 JSON 对象。非 JSON 或根节点不是对象时返回 ErrMalformedResponse。
func DecodeDraft(raw string) (Draft, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Draft{}, fmt.Errorf("%w: json 内容为空", ErrMalformedResponse)
	}
	if !gjson.Valid(raw) {
		return Draft{}, fmt.Errorf("%w: json 格式无效", ErrMalformedResponse)
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return Draft{}, fmt.Errorf("%w: 根节点必须是 JSON 对象", ErrMalformedResponse)
	}
	d := Draft{
		Operation:              textOf(parsed.Get("operation")),
		Symbol:                 textOf(parsed.Get("symbol")),
		TargetPortionOfBalance: numberOf(parsed.Get("target_portion_of_balance")),
		Leverage:               numberOf(parsed.Get("leverage")),
	}
	if dir := parsed.Get("direction"); dir.Exists() && dir.Type != gjson.Null {
		s := textOf(dir)
		d.Direction = &s
	}
	if reason := parsed.Get("reason"); reason.Type == gjson.String {
		d.Reason = reason.String()
		d.ReasonIsString = true
	}
	return d, nil
}

// textOf 对非字符串值保留原始文本，交由后续枚举校验拒绝。
func textOf(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}

// numberOf 兼容 LLM 有时返回 "0.5" 而非 0.5 的情况。
func numberOf(v gjson.Result) Number {
	if !v.Exists() || v.Type == gjson.Null {
		return Number{}
	}
	n := Number{Present: true, Raw: v.Raw}
	switch v.Type {
	case gjson.Number:
		n.Value, n.OK = v.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err == nil {
			n.Value, n.OK = f, true
		}
	}
	return n
}
