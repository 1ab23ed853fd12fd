package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Series 与输入 K 线等长、逐行对齐；预热期内的值为 NaN。
type Series []float64

// Engine 计算单个指标序列。输入过短时返回全 NaN，不会 panic。
type Engine interface {
	EMA(closes []float64, period int) Series
	RSI(closes []float64, period int) Series
	MACDHistogram(closes []float64) Series
	ATR(highs, lows, closes []float64, period int) Series
}

// TALib 基于 go-talib 实现 Engine。
type TALib struct{}

var _ Engine = TALib{}

func (TALib) EMA(closes []float64, period int) Series {
	if period <= 0 {
		return undefined(len(closes))
	}
	lookback := period - 1
	if len(closes) <= lookback {
		return undefined(len(closes))
	}
	return mask(talib.Ema(closes, period), lookback)
}

func (TALib) RSI(closes []float64, period int) Series {
	if period <= 1 {
		return undefined(len(closes))
	}
	if len(closes) <= period {
		return undefined(len(closes))
	}
	return mask(talib.Rsi(closes, period), period)
}

// MACDHistogram 返回 MACD(12,26,9) 的柱状图（MACD - signal）。
func (TALib) MACDHistogram(closes []float64) Series {
	lookback := (macdSlow - 1) + (macdSignal - 1)
	if len(closes) <= lookback {
		return undefined(len(closes))
	}
	_, _, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	return mask(hist, lookback)
}

func (TALib) ATR(highs, lows, closes []float64, period int) Series {
	n := len(closes)
	if period <= 0 || len(highs) != n || len(lows) != n {
		return undefined(n)
	}
	if n <= period {
		return undefined(n)
	}
	return mask(talib.Atr(highs, lows, closes, period), period)
}

// Last 返回序列最后一个值（可能为 NaN）；空序列返回 NaN。
func (s Series) Last() float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// Tail 返回最后 n 个值的拷贝，顺序为旧到新。
func (s Series) Tail(n int) []float64 {
	if n <= 0 || len(s) == 0 {
		return []float64{}
	}
	if n > len(s) {
		n = len(s)
	}
	out := make([]float64, n)
	copy(out, s[len(s)-n:])
	return out
}

// Mean 返回最后 window 个有限值的均值；window<=0 表示全部。
func Mean(values []float64, window int) float64 {
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	var (
		sum   float64
		count int
	)
	for _, v := range values[len(values)-window:] {
		if !isFinite(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

func mask(src []float64, lookback int) Series {
	out := make(Series, len(src))
	for i, v := range src {
		if i < lookback || !isFinite(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

func undefined(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
