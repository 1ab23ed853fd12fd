package snapshot

// PivotSource 记录枢轴点所用 K 线的来源。
type PivotSource string

const (
	PivotFromDaily           PivotSource = "daily"
	PivotFromHigherTimeframe PivotSource = "higher_timeframe"
	PivotFromPrimary         PivotSource = "primary"
)

// PivotLevels 由同一组 (high, low, close) 一次性算出，不会混用来源。
type PivotLevels struct {
	PP     float64     `json:"pp"`
	S1     float64     `json:"s1"`
	S2     float64     `json:"s2"`
	R1     float64     `json:"r1"`
	R2     float64     `json:"r2"`
	Source PivotSource `json:"source"`
	High   float64     `json:"high"`
	Low    float64     `json:"low"`
	Close  float64     `json:"close"`
}

// ComputePivots 使用经典公式。
func ComputePivots(high, low, close float64, source PivotSource) PivotLevels {
	pp := (high + low + close) / 3
	rng := high - low
	return PivotLevels{
		PP:     pp,
		S1:     2*pp - high,
		S2:     pp - rng,
		R1:     2*pp - low,
		R2:     pp + rng,
		Source: source,
		High:   high,
		Low:    low,
		Close:  close,
	}
}
