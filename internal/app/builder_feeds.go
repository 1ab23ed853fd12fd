package app

import (
	"time"

	brcfg "github.com/Luigik28/rizzo-trading-agent/internal/config"
	"github.com/Luigik28/rizzo-trading-agent/internal/feeds"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
)

func buildFeeds(cfg brcfg.FeedsConfig) []feeds.Feed {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	out := make([]feeds.Feed, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if !src.IsEnabled() {
			continue
		}
		switch src.Kind {
		case "static":
			out = append(out, feeds.NewStaticFeed(src.Name, src.Section, src.Path, src.Limit))
		case "fear_greed":
			out = append(out, feeds.NewFearGreedFeed(src.Name, src.Section, src.URL, timeout))
		default:
			logger.Warnf("未知 feed 类型 %q (%s)，已跳过", src.Kind, src.Name)
		}
	}
	return out
}
