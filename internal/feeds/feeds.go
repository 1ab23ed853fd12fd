package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Feed 提供一段拼入提示词的外部文本（新闻、情绪、预测等）。
type Feed interface {
	Name() string
	// Section 为上下文中的标签名，如 news / sentiment / forecast。
	Section() string
	Fetch(ctx context.Context) (string, error)
}

// Result 为单个 feed 的结果；失败时 Text 为空、Err 非空。
type Result struct {
	Name    string
	Section string
	Text    string
	Err     error
}

// Collect 并发拉取全部 feed。单个失败只记录告警，不影响其它 feed 与本轮决策。
func Collect(ctx context.Context, list []Feed, timeout time.Duration) []Result {
	out := make([]Result, len(list))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range list {
		i, f := i, f
		g.Go(func() error {
			fctx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			text, err := f.Fetch(fctx)
			res := Result{Name: f.Name(), Section: f.Section(), Text: strings.TrimSpace(text)}
			if err != nil {
				res.Text = ""
				res.Err = fmt.Errorf("feed %s: %w", f.Name(), err)
				logger.Warnf("[feeds] %v", res.Err)
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// BySection 按 section 合并文本，保持 feed 的配置顺序。
func BySection(results []Result) map[string]string {
	out := make(map[string]string)
	for _, r := range results {
		if r.Text == "" {
			continue
		}
		if prev, ok := out[r.Section]; ok {
			out[r.Section] = prev + "\n\n" + r.Text
			continue
		}
		out[r.Section] = r.Text
	}
	return out
}
