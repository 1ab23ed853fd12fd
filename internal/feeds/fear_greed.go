package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultFearGreedEndpoint = "https://api.alternative.me/fng/?limit=5"
	fearGreedFallbackUpdate  = 12 * time.Hour
)

type FearGreedPoint struct {
	Value          int
	Classification string
	Timestamp      time.Time
}

type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
		TimeUntilUpdate     string `json:"time_until_update"`
	} `json:"data"`
	Metadata struct {
		Error interface{} `json:"error"`
	} `json:"metadata"`
}

// FearGreedFeed 拉取 alternative.me 的恐惧贪婪指数作为情绪输入；在下次更新时间前复用缓存。
type FearGreedFeed struct {
	name     string
	section  string
	endpoint string
	client   *http.Client
	nowFn    func() time.Time

	mu         sync.Mutex
	cached     string
	nextUpdate time.Time
}

func NewFearGreedFeed(name, section, endpoint string, timeout time.Duration) *FearGreedFeed {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultFearGreedEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FearGreedFeed{
		name:     name,
		section:  section,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		nowFn:    time.Now,
	}
}

func (f *FearGreedFeed) Name() string    { return f.name }
func (f *FearGreedFeed) Section() string { return f.section }

func (f *FearGreedFeed) Fetch(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.nowFn()
	if f.cached != "" && now.Before(f.nextUpdate) {
		return f.cached, nil
	}
	points, until, err := f.fetch(ctx)
	if err != nil {
		return "", err
	}
	f.cached = renderFearGreed(points)
	f.nextUpdate = now.Add(fearGreedFallbackUpdate)
	if until > 0 {
		f.nextUpdate = now.Add(until)
	}
	return f.cached, nil
}

func (f *FearGreedFeed) fetch(ctx context.Context) ([]FearGreedPoint, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var payload fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, err
	}
	if payload.Metadata.Error != nil {
		return nil, 0, fmt.Errorf("api error: %v", payload.Metadata.Error)
	}
	points := make([]FearGreedPoint, 0, len(payload.Data))
	for _, item := range payload.Data {
		value, err := strconv.Atoi(strings.TrimSpace(item.Value))
		if err != nil {
			continue
		}
		var ts time.Time
		if sec, err := strconv.ParseInt(strings.TrimSpace(item.Timestamp), 10, 64); err == nil {
			ts = time.Unix(sec, 0).UTC()
		}
		points = append(points, FearGreedPoint{
			Value:          value,
			Classification: strings.TrimSpace(item.ValueClassification),
			Timestamp:      ts,
		})
	}
	if len(points) == 0 {
		return nil, 0, fmt.Errorf("api data empty")
	}
	var until time.Duration
	if secs, err := strconv.ParseInt(strings.TrimSpace(payload.Data[0].TimeUntilUpdate), 10, 64); err == nil && secs > 0 {
		until = time.Duration(secs) * time.Second
	}
	return points, until, nil
}

func renderFearGreed(points []FearGreedPoint) string {
	latest := points[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Crypto Fear & Greed Index: %d (%s)", latest.Value, latest.Classification)
	if len(points) > 1 {
		hist := make([]string, 0, len(points)-1)
		for _, p := range points[1:] {
			hist = append(hist, strconv.Itoa(p.Value))
		}
		fmt.Fprintf(&b, "\nPrevious days (newest first): %s", strings.Join(hist, ", "))
	}
	return b.String()
}
