package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/mail"
	"AfriArt-Gallery/pkg/logger"
)

// Channel 表示通知渠道。
type Channel string

// 支持的通知渠道
const (
	ChannelEmail Channel = "email"
	ChannelLog   Channel = "log"
)

// Event 描述一次需要告警的事件，例如结算任务耗尽重试或支付网关不可用。
type Event struct {
	Code        xerrors.Code
	Message     string
	Severity    xerrors.Severity
	Source      string
	Reference   string
	Attempts    int
	MaxAttempts int
	Metadata    map[string]string
	OccurredAt  time.Time
}

// Notifier 负责将事件发送到指定渠道。
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher 将事件广播给多个通知器。
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher 实现将事件投递到多个通知器的逻辑。
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout 创建一个新的 FanoutDispatcher，同一渠道只保留最后一个通知器。
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Notify 将事件广播至所有注册渠道。
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EmailNotifier 通过邮件发送告警。
type EmailNotifier struct {
	Sender        mail.Sender
	To            []string
	SubjectPrefix string
}

// Channel 返回邮件渠道。
func (n *EmailNotifier) Channel() Channel { return ChannelEmail }

// Notify 发送邮件。
func (n *EmailNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.Sender == nil || len(n.To) == 0 {
		logger.L().Warn("EmailNotifier 未正确配置，跳过发送", slog.String("reference", event.Reference))
		return nil
	}
	return n.Sender.Send(ctx, mail.Message{
		To:      n.To,
		Subject: fmt.Sprintf("%s[%s] %s", n.SubjectPrefix, event.Severity, event.Code),
		Text:    formatEvent(event),
	})
}

// LogNotifier 把告警写入审计日志，未配置收件人时作为兜底渠道。
type LogNotifier struct{}

// Channel 返回日志渠道。
func (LogNotifier) Channel() Channel { return ChannelLog }

// Notify 记录告警。
func (LogNotifier) Notify(_ context.Context, event Event) error {
	attrs := []any{
		slog.String("code", string(event.Code)),
		slog.String("severity", string(event.Severity)),
		slog.String("source", event.Source),
		slog.String("reference", event.Reference),
		slog.Int("attempts", event.Attempts),
		slog.Int("max_attempts", event.MaxAttempts),
		slog.String("message", event.Message),
	}
	for _, key := range sortedKeys(event.Metadata) {
		attrs = append(attrs, slog.String("meta_"+key, event.Metadata[key]))
	}
	logger.Audit().Warn("alert", attrs...)
	return nil
}

func formatEvent(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "告警时间: %s\n", event.OccurredAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "来源: %s\n", event.Source)
	fmt.Fprintf(&b, "对象: %s\n", event.Reference)
	if event.MaxAttempts > 0 {
		fmt.Fprintf(&b, "重试: %d/%d\n", event.Attempts, event.MaxAttempts)
	}
	fmt.Fprintf(&b, "错误码: %s\n描述: %s", event.Code, event.Message)
	if len(event.Metadata) > 0 {
		b.WriteString("\n详情:\n")
		for _, key := range sortedKeys(event.Metadata) {
			fmt.Fprintf(&b, "- %s: %s\n", key, event.Metadata[key])
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
