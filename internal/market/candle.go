package market

import "time"

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Candles 为按时间升序（最新在末尾）排列的 K 线序列。
type Candles []Candle

func (cs Candles) Closes() []float64 {
	return cs.column(func(c Candle) float64 { return c.Close })
}

func (cs Candles) Highs() []float64 {
	return cs.column(func(c Candle) float64 { return c.High })
}

func (cs Candles) Lows() []float64 {
	return cs.column(func(c Candle) float64 { return c.Low })
}

func (cs Candles) Volumes() []float64 {
	return cs.column(func(c Candle) float64 { return c.Volume })
}

func (cs Candles) column(pick func(Candle) float64) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = pick(c)
	}
	return out
}

// Last 返回最新一根 K 线；空序列返回 false。
func (cs Candles) Last() (Candle, bool) {
	if len(cs) == 0 {
		return Candle{}, false
	}
	return cs[len(cs)-1], true
}

// Ordered reports whether open times are strictly increasing.
func (cs Candles) Ordered() bool {
	for i := 1; i < len(cs); i++ {
		if cs[i].OpenTime <= cs[i-1].OpenTime {
			return false
		}
	}
	return true
}

// ClosedBy reports whether the bar had closed at now. Bars without a close
// time are treated as ending one interval after they open.
func (c Candle) ClosedBy(now time.Time, interval time.Duration) bool {
	end := c.CloseTime
	if end <= 0 {
		end = c.OpenTime + interval.Milliseconds() - 1
	}
	return end < now.UnixMilli()
}

// LastClosed 返回 now 时刻已收盘的最新一根 K 线，序列末尾可能仍是未收盘的当前 K 线。
func (cs Candles) LastClosed(now time.Time, interval time.Duration) (Candle, bool) {
	for i := len(cs) - 1; i >= 0; i-- {
		if cs[i].ClosedBy(now, interval) {
			return cs[i], true
		}
	}
	return Candle{}, false
}
