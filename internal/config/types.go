package config

import "strings"

// Config 是 rizzo 的主配置载体，启动时构建一次并显式传递。
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	AI        AIConfig        `toml:"ai"`
	Trading   TradingConfig   `toml:"trading"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Store     StoreConfig     `toml:"store"`
	Feeds     FeedsConfig     `toml:"feeds"`
	Prompt    PromptConfig    `toml:"prompt"`
	HTTP      HTTPConfig      `toml:"http"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	LLMLog    string `toml:"llm_log_path"`
	LLMDump   bool   `toml:"llm_dump_payload"`
}

type MarketConfig struct {
	// Exchange 为 binance 或 gate。
	Exchange           string      `toml:"exchange"`
	RESTBaseURL        string      `toml:"rest_base_url"`
	HTTPTimeoutSeconds int         `toml:"http_timeout_seconds"`
	DropUnclosed       bool        `toml:"drop_unclosed"`
	OpenInterestPeriod string      `toml:"open_interest_period"`
	OpenInterestLimit  int         `toml:"open_interest_limit"`
	Proxy              ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// SnapshotConfig 控制快照三个周期的拉取参数。
type SnapshotConfig struct {
	PrimaryInterval string `toml:"primary_interval"`
	PrimaryLimit    int    `toml:"primary_limit"`
	HigherInterval  string `toml:"higher_interval"`
	HigherLimit     int    `toml:"higher_limit"`
	DailyInterval   string `toml:"daily_interval"`
	DailyLimit      int    `toml:"daily_limit"`
	TailLength      int    `toml:"tail_length"`
	VolumeWindow    int    `toml:"volume_window"`
}

type AIConfig struct {
	Providers []ProviderConfig `toml:"providers"`
	// ProviderOrder 为空时按 Providers 的书写顺序依次尝试。
	ProviderOrder          []string `toml:"provider_order"`
	BreakerThreshold       int      `toml:"breaker_threshold"`
	BreakerCooldownSeconds int      `toml:"breaker_cooldown_seconds"`
}

// ProviderConfig 描述一个模型提供方。APIKey 为空时从 APIKeyEnv 指定的环境变量读取。
type ProviderConfig struct {
	ID              string            `toml:"id"`
	Kind            string            `toml:"kind"`
	APIURL          string            `toml:"api_url"`
	APIKey          string            `toml:"api_key"`
	APIKeyEnv       string            `toml:"api_key_env"`
	Model           string            `toml:"model"`
	Enabled         *bool             `toml:"enabled"`
	Headers         map[string]string `toml:"headers"`
	Temperature     float64           `toml:"temperature"`
	MaxTokens       int               `toml:"max_tokens"`
	ReasoningEffort string            `toml:"reasoning_effort"`
	TimeoutSeconds  int               `toml:"timeout_seconds"`
}

func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// OrderedProviders 按 ProviderOrder 排列；未列出的提供方按原顺序追加在后面。
func (a AIConfig) OrderedProviders() []ProviderConfig {
	if len(a.ProviderOrder) == 0 {
		return append([]ProviderConfig(nil), a.Providers...)
	}
	byID := make(map[string]ProviderConfig, len(a.Providers))
	for _, p := range a.Providers {
		byID[p.ID] = p
	}
	out := make([]ProviderConfig, 0, len(a.Providers))
	used := make(map[string]bool, len(a.Providers))
	for _, id := range a.ProviderOrder {
		if p, ok := byID[id]; ok && !used[id] {
			out = append(out, p)
			used[id] = true
		}
	}
	for _, p := range a.Providers {
		if !used[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// TradingConfig 控制可交易标的、缺省方向策略与模拟账户。
type TradingConfig struct {
	Symbols          []string `toml:"symbols"`
	Quote            string   `toml:"quote"`
	MissingDirection string   `toml:"missing_direction"`
	DryRunBalance    float64  `toml:"dry_run_balance"`
}

type SchedulerConfig struct {
	RunContinuously bool `toml:"run_continuously"`
	IntervalSeconds int  `toml:"interval_seconds"`
	OffsetSeconds   int  `toml:"offset_seconds"`
	Align           bool `toml:"align"`
	RunImmediately  bool `toml:"run_immediately"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type FeedsConfig struct {
	TimeoutSeconds int          `toml:"timeout_seconds"`
	Sources        []FeedSource `toml:"sources"`
}

// FeedSource 为一个外部文本来源；Kind 为 static（本地 YAML）或 fear_greed。
type FeedSource struct {
	Name    string `toml:"name"`
	Kind    string `toml:"kind"`
	Section string `toml:"section"`
	Path    string `toml:"path"`
	URL     string `toml:"url"`
	Limit   int    `toml:"limit"`
	Enabled *bool  `toml:"enabled"`
}

func (f FeedSource) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

type PromptConfig struct {
	// SystemTemplate 为模板文件路径，为空时使用内置模板。
	SystemTemplate string `toml:"system_template"`
	Watch          bool   `toml:"watch"`
}

type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// NotifyConfig 控制周期结果推送；目前只支持 Telegram。
type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`

	// Holds 为 true 时 hold 决策也推送。
	Holds    bool `toml:"holds"`
	Failures bool `toml:"failures"`
}

// TelegramConfig 中 BotToken 为空时从 BotTokenEnv 指定的环境变量读取。
type TelegramConfig struct {
	Enabled     bool   `toml:"enabled"`
	BotToken    string `toml:"bot_token"`
	BotTokenEnv string `toml:"bot_token_env"`
	ChatID      string `toml:"chat_id"`
}
