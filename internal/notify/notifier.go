package notify

import (
	"context"

	"checkin_engine/internal/logbus"
)

// Notifier 推送一份运行报告。对调用方来说是尽力而为：
// 发送失败最多记一条日志，不影响退出码。
type Notifier interface {
	Push(ctx context.Context, title, body string) error
}

// BusNotifier 把报告写进日志总线，邮件未启用时的默认实现。
type BusNotifier struct {
	bus *logbus.Bus
}

func NewBusNotifier(bus *logbus.Bus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) Push(_ context.Context, title, body string) error {
	n.bus.Log("info", "运行报告（邮件未启用，仅记录）", map[string]any{
		"title": title,
		"body":  body,
	})
	return nil
}
