// Package mail 负责渲染并发送平台邮件（验证码、订单确认与告警）。
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/resend/resend-go/v2"

	"AfriArt-Gallery/pkg/logger"
)

// Message 描述一封待发送的邮件。
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender 定义发送邮件所需的能力。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendSender 通过 Resend API 发送邮件。
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender 创建 Resend 发送器。
func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("resend api key 不能为空")
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}, nil
}

// Send 实现 Sender。
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("邮件收件人为空")
	}
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend 发送失败: %w", err)
	}
	return nil
}

// LogSender 只把邮件写入日志，用于本地开发与测试。
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

// NewLogSender 创建日志发送器。
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send 实现 Sender。
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("邮件收件人为空")
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	logger.Named("mail").Info("邮件已记录",
		slog.String("to", strings.Join(msg.To, ",")),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Sent 返回已记录的邮件副本。
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

// Last 返回最后一封邮件。
func (s *LogSender) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Message{}, false
	}
	return s.sent[len(s.sent)-1], true
}
