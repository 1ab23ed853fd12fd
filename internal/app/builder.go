package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/agent"
	"github.com/Luigik28/rizzo-trading-agent/internal/ai"
	"github.com/Luigik28/rizzo-trading-agent/internal/analysis/indicator"
	brcfg "github.com/Luigik28/rizzo-trading-agent/internal/config"
	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/exchange"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/notifier"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/provider"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
	"github.com/Luigik28/rizzo-trading-agent/internal/market"
	"github.com/Luigik28/rizzo-trading-agent/internal/prompt"
	"github.com/Luigik28/rizzo-trading-agent/internal/snapshot"
	"github.com/Luigik28/rizzo-trading-agent/internal/store/sqlite"
	livehttp "github.com/Luigik28/rizzo-trading-agent/internal/transport/http/live"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type AppBuilder struct {
	cfg *brcfg.Config

	marketSourceFn func(*brcfg.Config) (market.Source, error)
	storeFn        func(string) (*sqlite.SqliteStore, error)
	registry       *prometheus.Registry
}

type AppBuilderOption func(*AppBuilder)

// WithMarketSource 替换行情源（测试用）。
func WithMarketSource(fn func(*brcfg.Config) (market.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.marketSourceFn = fn }
}

func WithRegistry(reg *prometheus.Registry) AppBuilderOption {
	return func(b *AppBuilder) { b.registry = reg }
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		marketSourceFn: gateway.NewSourceFromConfig,
		storeFn:        sqlite.NewSqliteStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.registry == nil {
		b.registry = prometheus.NewRegistry()
		b.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var closers []io.Closer
	success := false
	defer func() {
		if success {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	src, err := b.marketSourceFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化行情源失败: %w", err)
	}
	closers = append(closers, src)
	snaps := buildSnapshotBuilder(cfg, src)
	logger.Infof("✓ 行情源就绪 primary=%s higher=%s daily=%s", cfg.Snapshot.PrimaryInterval, cfg.Snapshot.HigherInterval, cfg.Snapshot.DailyInterval)

	policy, err := decision.ParseDirectionPolicy(cfg.Trading.MissingDirection)
	if err != nil {
		return nil, err
	}
	sanitizer, err := decision.NewSanitizer(cfg.Trading.Symbols, policy)
	if err != nil {
		return nil, fmt.Errorf("初始化决策校验失败: %w", err)
	}

	metrics := agent.NewMetrics(b.registry)
	requester, err := buildRequester(cfg.AI, sanitizer.Schema(), metrics)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 模型提供方顺序: %v", requester.Providers())

	prompts, err := prompt.NewManager(cfg.Prompt.SystemTemplate)
	if err != nil {
		return nil, fmt.Errorf("加载提示词模板失败: %w", err)
	}

	st, err := b.storeFn(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败 (%s): %w", cfg.Store.Path, err)
	}
	closers = append(closers, st)
	recorder := sqlite.NewRecorder(st)

	executor := exchange.NewDryRunExecutor(cfg.Trading.Quote, cfg.Trading.DryRunBalance, exchange.CandlePriceQuoter{
		Fetcher:  src,
		Quote:    cfg.Trading.Quote,
		Interval: cfg.Snapshot.PrimaryInterval,
	})

	feedList := buildFeeds(cfg.Feeds)
	notify := buildNotifier(cfg.Notify)
	last := agent.NewLastOutcome(50)
	engine, err := agent.NewEngine(agent.EngineParams{
		Tickers:     cfg.Trading.Symbols,
		Snapshots:   snaps,
		Feeds:       feedList,
		FeedTimeout: time.Duration(cfg.Feeds.TimeoutSeconds) * time.Second,
		Prompts:     prompts,
		Requester:   requester,
		Sanitizer:   sanitizer,
		Executor:    executor,
		Recorder:    recorder,
		Metrics:     metrics,
		Last:        last,
		Schedule: agent.Schedule{
			Continuous:     cfg.Scheduler.RunContinuously,
			Interval:       time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
			Offset:         time.Duration(cfg.Scheduler.OffsetSeconds) * time.Second,
			Align:          cfg.Scheduler.Align,
			RunImmediately: cfg.Scheduler.RunImmediately,
		},
		Notifier: notify,
		NotifyPolicy: agent.NotifyPolicy{
			Holds:    cfg.Notify.Holds,
			Failures: cfg.Notify.Failures,
		},
	})
	if err != nil {
		return nil, err
	}

	var liveHTTP *livehttp.Server
	if cfg.HTTP.Enabled {
		liveHTTP, err = livehttp.NewServer(livehttp.ServerConfig{
			Addr:      cfg.HTTP.Addr,
			Records:   recorder,
			Snapshots: snaps,
			Cycles:    last,
			Gatherer:  b.registry,
			LogPaths: map[string]string{
				"app": cfg.App.LogPath,
				"llm": cfg.App.LLMLog,
			},
			Tickers: engine.Tickers(),
		})
		if err != nil {
			return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
		}
	}

	summary := newStartupSummary(cfg, engine.Tickers(), requester.Providers(), sanitizer.Policy(), feedList, prompts)
	success = true
	return &App{
		cfg:      cfg,
		engine:   engine,
		prompts:  prompts,
		liveHTTP: liveHTTP,
		closers:  closers,
		Summary:  summary,
	}, nil
}

func buildNotifier(cfg brcfg.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	logger.Infof("✓ Telegram 推送已启用 chat=%s", cfg.Telegram.ChatID)
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildSnapshotBuilder(cfg *brcfg.Config, src market.Source) *snapshot.Builder {
	derivs := market.NewDerivativesService(src, cfg.Market.OpenInterestPeriod, cfg.Market.OpenInterestLimit)
	s := cfg.Snapshot
	return snapshot.NewBuilder(src, indicator.TALib{}, derivs, snapshot.Settings{
		Quote:           cfg.Trading.Quote,
		PrimaryInterval: s.PrimaryInterval,
		PrimaryLimit:    s.PrimaryLimit,
		HigherInterval:  s.HigherInterval,
		HigherLimit:     s.HigherLimit,
		DailyInterval:   s.DailyInterval,
		DailyLimit:      s.DailyLimit,
		TailLength:      s.TailLength,
		VolumeWindow:    s.VolumeWindow,
	})
}

func buildRequester(cfg brcfg.AIConfig, schema *decision.Schema, observer ai.Observer) (*ai.Requester, error) {
	strategies, err := provider.BuildStrategies(gateway.ProviderConfigs(cfg), schema)
	if err != nil {
		return nil, fmt.Errorf("初始化模型提供方失败: %w", err)
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("没有可用的模型提供方")
	}
	return ai.NewRequester(strategies, ai.Options{
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  time.Duration(cfg.BreakerCooldownSeconds) * time.Second,
		Observer:         observer,
	}), nil
}
