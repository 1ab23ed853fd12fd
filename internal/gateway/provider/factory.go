package provider

import (
	"fmt"
	"strings"

	"github.com/Luigik28/rizzo-trading-agent/internal/decision"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
)

// ResolveKind 未显式配置 kind 时，Perplexity 地址默认走 chat，其余走 responses。
func ResolveKind(kind, apiURL string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindResponses:
		return KindResponses, nil
	case KindChat:
		return KindChat, nil
	case "":
		if strings.Contains(strings.ToLower(apiURL), "perplexity") {
			return KindChat, nil
		}
		return KindResponses, nil
	default:
		return "", fmt.Errorf("unknown provider kind %q (want responses|chat)", kind)
	}
}

// BuildStrategies 按配置顺序构建策略链，跳过未启用的提供方。
func BuildStrategies(cfgs []Config, schema *decision.Schema) ([]Strategy, error) {
	out := make([]Strategy, 0, len(cfgs))
	for _, c := range cfgs {
		if !c.Enabled {
			continue
		}
		kind, err := ResolveKind(string(c.Kind), c.APIURL)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", c.ID, err)
		}
		c.Kind = kind
		if strings.TrimSpace(c.ID) == "" {
			c.ID = fmt.Sprintf("%s:%s", kind, strings.TrimSpace(c.Model))
			logger.Warnf("未配置 ai.providers.id，已生成 ID: %s", c.ID)
		}
		if !c.available() {
			logger.Warnf("[AI] provider %s 缺少 api key 或 model，将被跳过", c.ID)
		}
		switch kind {
		case KindChat:
			out = append(out, NewChatStrategy(c, schema))
		default:
			out = append(out, NewResponsesStrategy(c, schema))
		}
	}
	return out, nil
}
