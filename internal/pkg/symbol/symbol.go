package symbol

import "strings"

const DefaultQuote = "USDT"

var knownQuotes = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

// Symbol 内部统一表示：BASE/QUOTE。
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// FromTicker builds the pair traded for a bare ticker such as "BTC".
func FromTicker(ticker, quote string) Symbol {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" {
		quote = DefaultQuote
	}
	if ticker == "" {
		return Symbol{}
	}
	if parsed := Parse(ticker); parsed.Base != "" {
		return parsed
	}
	return Symbol{Base: ticker, Quote: quote}
}

// Parse 支持 BTC/USDT、BTC/USDT:USDT 以及 BTCUSDT 三种写法。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range knownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

// NormalizeTickers 大写、去空白、去重，保持原有顺序。
func NormalizeTickers(tickers []string) []string {
	if len(tickers) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
