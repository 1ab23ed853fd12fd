package notifier

import "context"

// TextNotifier 是推送文本通知的最小接口，调用方无需依赖具体实现（如 Telegram）。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
