package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppLogPath        = "data/logs/rizzo.log"
	defaultAppLLMLogPath     = "data/logs/rizzo-llm.log"
	defaultMarketExchange    = "binance"
	defaultMarketREST        = "https://fapi.binance.com"
	defaultGateREST          = "https://api.gateio.ws/api/v4"
	defaultMarketTimeout     = 15
	defaultOIPeriod          = "5m"
	defaultOILimit           = 30
	defaultPrimaryInterval   = "1m"
	defaultHigherInterval    = "4h"
	defaultDailyInterval     = "1d"
	defaultSnapshotLimit     = 100
	defaultDailyLimit        = 2
	defaultTailLength        = 10
	defaultVolumeWindow      = 20
	defaultBreakerCooldown   = 600
	defaultProviderTimeout   = 120
	defaultTradingQuote      = "USDT"
	defaultMissingDirection  = "long"
	defaultDryRunBalance     = 1000
	defaultSchedulerInterval = 9000
	defaultStorePath         = "data/rizzo.db"
	defaultFeedTimeout       = 15
	defaultHTTPAddr          = ":9991"
	defaultTelegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
)

var defaultSymbols = []string{"BTC", "ETH", "SOL"}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Snapshot.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Feeds.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	m.Proxy.normalize()
	m.Exchange = strings.ToLower(strings.TrimSpace(m.Exchange))
	rest := defaultMarketREST
	if m.Exchange == "gate" {
		rest = defaultGateREST
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.exchange", &m.Exchange, defaultMarketExchange),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, rest),
		intFieldDefault("market.http_timeout_seconds", &m.HTTPTimeoutSeconds, defaultMarketTimeout),
		stringFieldDefault("market.open_interest_period", &m.OpenInterestPeriod, defaultOIPeriod),
		intFieldDefault("market.open_interest_limit", &m.OpenInterestLimit, defaultOILimit),
		boolFieldDefault("market.drop_unclosed", &m.DropUnclosed, true),
	)
}

func (s *SnapshotConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("snapshot.primary_interval", &s.PrimaryInterval, defaultPrimaryInterval),
		intFieldDefault("snapshot.primary_limit", &s.PrimaryLimit, defaultSnapshotLimit),
		stringFieldDefault("snapshot.higher_interval", &s.HigherInterval, defaultHigherInterval),
		intFieldDefault("snapshot.higher_limit", &s.HigherLimit, defaultSnapshotLimit),
		stringFieldDefault("snapshot.daily_interval", &s.DailyInterval, defaultDailyInterval),
		intFieldDefault("snapshot.daily_limit", &s.DailyLimit, defaultDailyLimit),
		intFieldDefault("snapshot.tail_length", &s.TailLength, defaultTailLength),
		intFieldDefault("snapshot.volume_window", &s.VolumeWindow, defaultVolumeWindow),
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("ai.breaker_cooldown_seconds", &a.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	a.ProviderOrder = normalizePreferenceList(a.ProviderOrder)
	for i := range a.Providers {
		p := &a.Providers[i]
		p.ID = strings.TrimSpace(p.ID)
		p.APIURL = strings.TrimRight(strings.TrimSpace(p.APIURL), "/")
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.ID == "" {
			p.ID = fmt.Sprintf("provider_%d", i)
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeout
		}
	}
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	if len(t.Symbols) == 0 {
		t.Symbols = append([]string(nil), defaultSymbols...)
	}
	t.Quote = strings.ToUpper(strings.TrimSpace(t.Quote))
	t.MissingDirection = strings.ToLower(strings.TrimSpace(t.MissingDirection))
	applyFieldDefaults(keys,
		stringFieldDefault("trading.quote", &t.Quote, defaultTradingQuote),
		stringFieldDefault("trading.missing_direction", &t.MissingDirection, defaultMissingDirection),
		fieldDefault{
			key:   "trading.dry_run_balance",
			need:  func() bool { return t.DryRunBalance <= 0 },
			apply: func() { t.DryRunBalance = defaultDryRunBalance },
		},
	)
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("scheduler.run_continuously", &s.RunContinuously, true),
		boolFieldDefault("scheduler.run_immediately", &s.RunImmediately, true),
		intFieldDefault("scheduler.interval_seconds", &s.IntervalSeconds, defaultSchedulerInterval),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (f *FeedsConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("feeds.timeout_seconds", &f.TimeoutSeconds, defaultFeedTimeout),
	)
	for i := range f.Sources {
		src := &f.Sources[i]
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		src.Section = strings.ToLower(strings.TrimSpace(src.Section))
		src.Name = strings.TrimSpace(src.Name)
		if src.Name == "" {
			src.Name = fmt.Sprintf("feed_%d", i)
		}
		if src.Section == "" {
			src.Section = defaultFeedSection(src.Kind)
		}
	}
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
	)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	n.Telegram.ChatID = strings.TrimSpace(n.Telegram.ChatID)
	applyFieldDefaults(keys,
		stringFieldDefault("notify.telegram.bot_token_env", &n.Telegram.BotTokenEnv, defaultTelegramTokenEnv),
		boolFieldDefault("notify.failures", &n.Failures, true),
	)
}

func defaultFeedSection(kind string) string {
	if kind == "fear_greed" {
		return "sentiment"
	}
	return "news"
}

// Helper functions

type keySet map[string]struct{}

func (k keySet) mark(key string) {
	if k == nil {
		return
	}
	k[strings.ToLower(key)] = struct{}{}
}

func (k keySet) isSet(key string) bool {
	if k == nil {
		return false
	}
	_, ok := k[strings.ToLower(key)]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizePreferenceList(pref []string) []string {
	if len(pref) == 0 {
		return nil
	}
	out := make([]string, 0, len(pref))
	seen := make(map[string]bool, len(pref))
	for _, id := range pref {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
