package app

import (
	"fmt"
	"strings"
	"time"

	brcfg "github.com/Luigik28/rizzo-trading-agent/internal/config"
	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/feeds"
	"github.com/Luigik28/rizzo-trading-agent/internal/prompt"
)

type StartupSummary struct {
	Market    MarketSummary
	Providers []string
	Feeds     []string
	Schedule  ScheduleSummary
	Trading   TradingSummary
	Prompt    string
	Store     string
	HTTPAddr  string
}

type MarketSummary struct {
	Tickers   []string
	Intervals []string
	Limits    []int
}

type ScheduleSummary struct {
	Continuous     bool
	Interval       time.Duration
	RunImmediately bool
	Align          bool
}

type TradingSummary struct {
	Quote            string
	MissingDirection string
	DryRunBalance    float64
}

func newStartupSummary(cfg *brcfg.Config, tickers, providers []string, policy decision.DirectionPolicy, feedList []feeds.Feed, prompts *prompt.Manager) *StartupSummary {
	s := &StartupSummary{
		Market: MarketSummary{
			Tickers:   tickers,
			Intervals: []string{cfg.Snapshot.PrimaryInterval, cfg.Snapshot.HigherInterval, cfg.Snapshot.DailyInterval},
			Limits:    []int{cfg.Snapshot.PrimaryLimit, cfg.Snapshot.HigherLimit, cfg.Snapshot.DailyLimit},
		},
		Providers: providers,
		Schedule: ScheduleSummary{
			Continuous:     cfg.Scheduler.RunContinuously,
			Interval:       time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
			RunImmediately: cfg.Scheduler.RunImmediately,
			Align:          cfg.Scheduler.Align,
		},
		Trading: TradingSummary{
			Quote:            cfg.Trading.Quote,
			MissingDirection: string(policy),
			DryRunBalance:    cfg.Trading.DryRunBalance,
		},
		Store: cfg.Store.Path,
	}
	for _, f := range feedList {
		s.Feeds = append(s.Feeds, fmt.Sprintf("%s → <%s>", f.Name(), f.Section()))
	}
	if prompts != nil {
		s.Prompt = prompts.Path()
	}
	if cfg.HTTP.Enabled {
		s.HTTPAddr = cfg.HTTP.Addr
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[行情数据 (MARKET DATA)]")
	fmt.Printf("  交易标的: %s\n", formatList(s.Market.Tickers))
	fmt.Printf("  快照周期: %s\n", formatList(s.Market.Intervals))
	fmt.Printf("  拉取根数: %v\n", s.Market.Limits)
	fmt.Println()

	fmt.Println("[模型提供方 (PROVIDERS)]")
	if len(s.Providers) == 0 {
		fmt.Println("  (无)")
	}
	for i, p := range s.Providers {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
	fmt.Println()

	fmt.Println("[外部资讯 (FEEDS)]")
	fmt.Printf("  %s\n", formatList(s.Feeds))
	fmt.Println()

	fmt.Println("[调度与交易 (SCHEDULE & TRADING)]")
	if s.Schedule.Continuous {
		fmt.Printf("  模式: 连续  间隔: %s  立即执行: %v  对齐: %v\n", s.Schedule.Interval, s.Schedule.RunImmediately, s.Schedule.Align)
	} else {
		fmt.Println("  模式: 单次")
	}
	fmt.Printf("  计价币: %s  缺省方向: %s  模拟余额: %.2f\n", s.Trading.Quote, s.Trading.MissingDirection, s.Trading.DryRunBalance)
	tmpl := s.Prompt
	if tmpl == "" {
		tmpl = "(内置模板)"
	}
	fmt.Printf("  提示词: %s\n", tmpl)
	fmt.Printf("  数据库: %s\n", s.Store)
	if s.HTTPAddr != "" {
		fmt.Printf("  HTTP: %s\n", s.HTTPAddr)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
