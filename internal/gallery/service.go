package gallery

import (
	"errors"
	"log/slog"
	"time"

	"AfriArt-Gallery/pkg/logger"
)

// Service 聚合画廊的业务操作。
type Service struct {
	store    Store
	accounts AccountDirectory
	audit    *slog.Logger
	log      *slog.Logger
	now      func() time.Time
	newCode  func() string
}

// Option 配置 Service。
type Option func(*Service)

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTicketCodes 替换门票编号生成器。
func WithTicketCodes(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newCode = gen
		}
	}
}

// NewService 创建画廊服务。
func NewService(store Store, accounts AccountDirectory, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("gallery service requires a store")
	}
	if accounts == nil {
		return nil, errors.New("gallery service requires an account directory")
	}
	s := &Service{
		store:    store,
		accounts: accounts,
		audit:    logger.Audit(),
		log:      logger.Named("gallery"),
		now:      time.Now,
		newCode:  NewTicketCode,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}
