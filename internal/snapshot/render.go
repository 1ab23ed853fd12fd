package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var separator = strings.Repeat("=", 80)

// Render 输出单个标的的文本报告，用于拼入提示词。
func Render(s MarketSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", separator)
	fmt.Fprintf(&b, "ALL %s DATA\n", s.Ticker)
	fmt.Fprintf(&b, "Timestamp: %s\n", s.CapturedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n\n", separator)

	c := s.Current
	fmt.Fprintf(&b, "current_price = %s, current_ema20 = %s, current_macd = %s, current_rsi (7 period) = %s\n\n",
		c.Price.Format(1), c.EMA20.Format(3), c.MACDHistogram.Format(3), c.RSI7.Format(3))

	p := s.PivotPoints
	fmt.Fprintf(&b, "Pivot Points (based on %s):\n", pivotLabel(p.Source))
	fmt.Fprintf(&b, "R2 = %.2f, R1 = %.2f, PP = %.2f, S1 = %.2f, S2 = %.2f\n\n", p.R2, p.R1, p.PP, p.S1, p.S2)

	d := s.Derivatives
	fmt.Fprintf(&b, "In addition, here is the latest %s open interest and funding rate for perps:\n", s.Ticker)
	fmt.Fprintf(&b, "Open Interest: Latest: %.2f Average: %.2f\n", d.OpenInterestLatest, d.OpenInterestAverage)
	fmt.Fprintf(&b, "Funding Rate: %.2e\n\n", d.FundingRate)

	in := s.Intraday
	fmt.Fprintf(&b, "Intraday series (%s, oldest → latest):\n", in.Interval)
	fmt.Fprintf(&b, "Close prices: %s\n", formatValues(in.Closes, 1))
	fmt.Fprintf(&b, "EMA indicators (20-period): %s\n", formatValues(in.EMA20, 3))
	fmt.Fprintf(&b, "MACD indicators: %s\n", formatValues(in.MACDHistogram, 3))
	fmt.Fprintf(&b, "RSI indicators (7-Period): %s\n", formatValues(in.RSI7, 3))
	fmt.Fprintf(&b, "RSI indicators (14-Period): %s\n\n", formatValues(in.RSI14, 3))

	lt := s.LongerTerm
	fmt.Fprintf(&b, "Longer-term context (%s timeframe):\n", lt.Interval)
	if !lt.Available {
		b.WriteString("unavailable\n")
	} else {
		fmt.Fprintf(&b, "20-Period EMA: %s vs. 50-Period EMA: %s\n", lt.EMA20.Format(3), lt.EMA50.Format(3))
		fmt.Fprintf(&b, "3-Period ATR: %s vs. 14-Period ATR: %s\n", lt.ATR3.Format(3), lt.ATR14.Format(3))
		fmt.Fprintf(&b, "Current Volume: %s vs. Average Volume: %s\n", lt.VolumeCurrent.Format(3), lt.VolumeAverage.Format(3))
		fmt.Fprintf(&b, "MACD indicators: %s\n", formatValues(lt.MACDHistogram, 3))
		fmt.Fprintf(&b, "RSI indicators (14-Period): %s\n", formatValues(lt.RSI14, 3))
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\nData warnings:\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	fmt.Fprintf(&b, "\n%s\n", separator)
	return b.String()
}

// RenderAll 按顺序拼接多个标的的报告。
func RenderAll(snaps []MarketSnapshot) string {
	var b strings.Builder
	for _, s := range snaps {
		b.WriteString(Render(s))
	}
	return b.String()
}

// JSON 返回快照列表的 JSON，未定义值为 null。
func JSON(snaps []MarketSnapshot) (string, error) {
	raw, err := json.Marshal(snaps)
	if err != nil {
		return "", fmt.Errorf("marshal snapshots: %w", err)
	}
	return string(raw), nil
}

func pivotLabel(src PivotSource) string {
	switch src {
	case PivotFromDaily:
		return "previous day"
	case PivotFromHigherTimeframe:
		return "latest higher-timeframe bar"
	case PivotFromPrimary:
		return "latest intraday bar"
	default:
		return "unknown source"
	}
}
