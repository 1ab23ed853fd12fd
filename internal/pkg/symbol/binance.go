package symbol

import "strings"

// BinanceConverter 在内部格式与 Binance 合约符号（BTCUSDT）之间转换。
type BinanceConverter struct{}

func (BinanceConverter) ToExchange(internal string) string {
	if sym := Parse(internal); sym.Base != "" {
		return sym.Binance()
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(internal)), "/", "")
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

var Binance = BinanceConverter{}
