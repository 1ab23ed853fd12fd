package symbol

import "strings"

// GateConverter 在内部格式与 Gate 合约名（BTC_USDT）之间转换。
type GateConverter struct{}

func (GateConverter) ToExchange(internal string) string {
	if sym := Parse(internal); sym.Base != "" {
		return sym.Base + "_" + sym.Quote
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(internal)), "/", "_")
}

func (GateConverter) FromExchange(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if base, quote, ok := strings.Cut(s, "_"); ok && base != "" && quote != "" {
		return base + "/" + quote
	}
	return Parse(s).Internal()
}

var Gate = GateConverter{}
