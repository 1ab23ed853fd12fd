package app

import (
	"context"
	"fmt"
	"io"

	"github.com/Luigik28/rizzo-trading-agent/internal/agent"
	brcfg "github.com/Luigik28/rizzo-trading-agent/internal/config"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
	"github.com/Luigik28/rizzo-trading-agent/internal/prompt"
	livehttp "github.com/Luigik28/rizzo-trading-agent/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动决策循环与 HTTP 服务。
type App struct {
	cfg      *brcfg.Config
	engine   *agent.Engine
	prompts  *prompt.Manager
	liveHTTP *livehttp.Server
	closers  []io.Closer
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动决策循环；单次模式下周期结束后一并停止 HTTP 与模板监听。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.engine == nil {
		return fmt.Errorf("engine not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(runCtx)

	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(gctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	if a.prompts != nil && a.cfg.Prompt.Watch {
		group.Go(func() error {
			return a.prompts.Watch(gctx)
		})
	}
	group.Go(func() error {
		defer cancel()
		return a.engine.Run(gctx)
	})
	return group.Wait()
}

// Engine exposes the decision engine (for tests and one-off tooling).
func (a *App) Engine() *agent.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Close 释放行情源与数据库连接。
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warnf("App: close failed: %v", err)
		}
	}
	a.closers = nil
}
