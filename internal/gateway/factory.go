package gateway

import (
	"fmt"
	"strings"
	"time"

	brcfg "github.com/Luigik28/rizzo-trading-agent/internal/config"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/binance"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/gate"
	"github.com/Luigik28/rizzo-trading-agent/internal/gateway/provider"
	"github.com/Luigik28/rizzo-trading-agent/internal/market"
)

// NewSourceFromConfig 按 market.exchange 构建 USDT 永续行情源（binance 或 gate）。
func NewSourceFromConfig(cfg *brcfg.Config) (market.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	m := cfg.Market
	timeout := time.Duration(m.HTTPTimeoutSeconds) * time.Second
	switch strings.ToLower(strings.TrimSpace(m.Exchange)) {
	case "", "binance":
		return binance.New(binance.Config{
			RESTBaseURL:  m.RESTBaseURL,
			HTTPTimeout:  timeout,
			ProxyEnabled: m.Proxy.Enabled,
			RESTProxyURL: m.Proxy.RESTURL,
			DropUnclosed: m.DropUnclosed,
		})
	case "gate":
		return gate.New(gate.Config{
			RESTBaseURL:  m.RESTBaseURL,
			HTTPTimeout:  timeout,
			ProxyEnabled: m.Proxy.Enabled,
			RESTProxyURL: m.Proxy.RESTURL,
			DropUnclosed: m.DropUnclosed,
		})
	default:
		return nil, fmt.Errorf("unsupported market exchange: %s", m.Exchange)
	}
}

// ProviderConfigs 按尝试顺序把配置转换为提供方描述。
func ProviderConfigs(ai brcfg.AIConfig) []provider.Config {
	ordered := ai.OrderedProviders()
	out := make([]provider.Config, 0, len(ordered))
	for _, p := range ordered {
		out = append(out, provider.Config{
			ID:              p.ID,
			Kind:            provider.Kind(p.Kind),
			APIURL:          p.APIURL,
			APIKey:          p.APIKey,
			Model:           p.Model,
			Enabled:         p.IsEnabled(),
			Headers:         p.Headers,
			Temperature:     p.Temperature,
			MaxTokens:       p.MaxTokens,
			ReasoningEffort: p.ReasoningEffort,
			Timeout:         time.Duration(p.TimeoutSeconds) * time.Second,
		})
	}
	return out
}
