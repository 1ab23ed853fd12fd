package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Luigik28/rizzo-trading-agent/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Snapshot.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	if err := c.Feeds.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if n.Telegram.BotToken == "" {
		return fmt.Errorf("notify.telegram enabled but no bot token (set bot_token or %s)", n.Telegram.BotTokenEnv)
	}
	if n.Telegram.ChatID == "" {
		return fmt.Errorf("notify.telegram.chat_id cannot be empty")
	}
	return nil
}

func (a *AIConfig) validate() error {
	if len(a.Providers) == 0 {
		return fmt.Errorf("ai.providers requires at least one provider")
	}
	if a.BreakerThreshold < 0 {
		return fmt.Errorf("ai.breaker_threshold must be >= 0")
	}
	ids := make(map[string]struct{}, len(a.Providers))
	enabled := 0
	for _, p := range a.Providers {
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("ai.providers contains duplicate id: %s", p.ID)
		}
		ids[p.ID] = struct{}{}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("ai.providers.%s missing model", p.ID)
		}
		if strings.TrimSpace(p.APIURL) == "" {
			return fmt.Errorf("ai.providers.%s missing api_url", p.ID)
		}
		if u, err := url.Parse(p.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ai.providers.%s invalid api_url: %s", p.ID, p.APIURL)
		}
		switch p.Kind {
		case "", "responses", "chat":
		default:
			return fmt.Errorf("ai.providers.%s kind must be responses or chat, got %q", p.ID, p.Kind)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("ai.providers.%s temperature must be within [0,2]", p.ID)
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("ai.providers.%s max_tokens must be >= 0", p.ID)
		}
		if p.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("ai.providers has no enabled provider")
	}
	for _, id := range a.ProviderOrder {
		if _, ok := ids[id]; !ok {
			return fmt.Errorf("ai.provider_order contains unconfigured provider id: %s", id)
		}
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.Exchange {
	case "binance", "gate":
	default:
		return fmt.Errorf("market.exchange must be binance or gate, got %q", m.Exchange)
	}
	if m.Proxy.Enabled && m.Proxy.RESTURL == "" {
		return fmt.Errorf("market.proxy.rest_url is required when proxy is enabled")
	}
	if _, ok := scheduler.ParseIntervalDuration(m.OpenInterestPeriod); !ok {
		return fmt.Errorf("market.open_interest_period invalid: %s", m.OpenInterestPeriod)
	}
	return nil
}

func (s *SnapshotConfig) validate() error {
	for key, iv := range map[string]string{
		"snapshot.primary_interval": s.PrimaryInterval,
		"snapshot.higher_interval":  s.HigherInterval,
		"snapshot.daily_interval":   s.DailyInterval,
	} {
		if _, ok := scheduler.ParseIntervalDuration(iv); !ok {
			return fmt.Errorf("%s invalid: %s", key, iv)
		}
	}
	if s.PrimaryLimit > 1500 || s.HigherLimit > 1500 || s.DailyLimit > 1500 {
		return fmt.Errorf("snapshot limits must be <= 1500")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if len(t.Symbols) == 0 {
		return fmt.Errorf("trading.symbols cannot be empty")
	}
	for _, s := range t.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("trading.symbols contains empty entry")
		}
	}
	switch t.MissingDirection {
	case "long", "reject":
	default:
		return fmt.Errorf("trading.missing_direction must be long or reject, got %q", t.MissingDirection)
	}
	if t.DryRunBalance <= 0 {
		return fmt.Errorf("trading.dry_run_balance must be > 0")
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if s.RunContinuously && s.IntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.interval_seconds must be > 0 in continuous mode")
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("scheduler.offset_seconds must be >= 0")
	}
	return nil
}

func (f *FeedsConfig) validate() error {
	names := make(map[string]struct{}, len(f.Sources))
	for _, src := range f.Sources {
		if _, dup := names[src.Name]; dup {
			return fmt.Errorf("feeds.sources contains duplicate name: %s", src.Name)
		}
		names[src.Name] = struct{}{}
		switch src.Kind {
		case "static":
			if strings.TrimSpace(src.Path) == "" {
				return fmt.Errorf("feeds.sources.%s: static feed requires path", src.Name)
			}
		case "fear_greed":
		default:
			return fmt.Errorf("feeds.sources.%s: unknown kind %q (want static|fear_greed)", src.Name, src.Kind)
		}
		if src.Limit < 0 {
			return fmt.Errorf("feeds.sources.%s: limit must be >= 0", src.Name)
		}
	}
	return nil
}
