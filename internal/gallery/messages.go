package gallery

import (
	"context"
	"log/slog"
	"strings"

	"AfriArt-Gallery/internal/auth"
)

const defaultMessageSource = "contact"

// SubmitMessage 保存联系表单留言，公开接口。
func (s *Service) SubmitMessage(ctx context.Context, in MessageInput) (*Message, error) {
	if err := Validate(&in); err != nil {
		return nil, err
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = defaultMessageSource
	}
	msg := &Message{
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Message:   in.Message,
		Source:    source,
		Status:    MessageNew,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.log.Info("收到新留言", slog.Int64("message_id", msg.ID), slog.String("source", source))
	return msg, nil
}

// ListMessages 返回全部留言，仅管理员可见。
func (s *Service) ListMessages(ctx context.Context, subject *auth.Subject) ([]Message, error) {
	if err := auth.CanManageMessages(subject); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx)
}

// UpdateMessageStatus 更新留言状态，仅管理员可操作。
func (s *Service) UpdateMessageStatus(ctx context.Context, subject *auth.Subject, id int64, raw string) error {
	if err := auth.CanManageMessages(subject); err != nil {
		return err
	}
	status, err := ParseMessageStatus(raw)
	if err != nil {
		return err
	}
	return s.store.UpdateMessageStatus(ctx, id, status)
}
