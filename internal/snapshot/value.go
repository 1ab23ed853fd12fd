package snapshot

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value 是可能未定义的指标值。NaN 表示预热不足，文本渲染为 "n/a"，JSON 渲染为 null。
type Value float64

const undefinedText = "n/a"

func Undefined() Value { return Value(math.NaN()) }

func (v Value) Defined() bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Format 按固定小数位输出；未定义时为 "n/a"，绝不替换为 0。
func (v Value) Format(prec int) string {
	if !v.Defined() {
		return undefinedText
	}
	return strconv.FormatFloat(float64(v), 'f', prec, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(v))
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*v = Undefined()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

func valuesOf(src []float64) []Value {
	out := make([]Value, len(src))
	for i, f := range src {
		out[i] = Value(f)
	}
	return out
}

func formatValues(vals []Value, prec int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.Format(prec))
	}
	b.WriteByte(']')
	return b.String()
}
