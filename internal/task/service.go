package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/pkg/logger"
)

// Service 负责任务的创建与查询。
type Service struct {
	store       Store
	producer    Producer
	maxAttempts int
}

// NewService 构造任务服务。
func NewService(store Store, producer Producer, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{store: store, producer: producer, maxAttempts: maxAttempts}
}

// Submit 为 kind/key 创建任务并推送到队列。同一 kind/key 只会有一个任务：
// 已存在且仍待处理的任务会被重新投递，已完成或已放弃的任务原样返回。
func (s *Service) Submit(ctx context.Context, kind Kind, key string) (*Job, error) {
	key = strings.TrimSpace(key)
	if kind == "" || key == "" {
		return nil, xerrors.New(CodeJobValidation, "任务类型与对象不能为空")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")
	}

	id := JobID(kind, key)
	job, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		if job.Status != StatusPending && job.Status != StatusFailed {
			return job, nil
		}
	case stdErrors.Is(err, ErrJobNotFound):
		job = &Job{
			ID:          id,
			Kind:        kind,
			Key:         key,
			Status:      StatusPending,
			MaxAttempts: s.maxAttempts,
		}
		if err := s.store.Create(ctx, job); err != nil {
			if !stdErrors.Is(err, ErrJobConflict) {
				return nil, err
			}
			// 并发提交时另一方已创建，沿用已有任务。
			if job, err = s.store.Get(ctx, id); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	if err := s.producer.Publish(ctx, id); err != nil {
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("job_id", id))
		return nil, xerrors.Wrap(CodeJobPublish, err, "发布任务到队列失败")
	}
	logger.Audit().Info("job_enqueued",
		slog.String("job_id", id),
		slog.String("kind", string(kind)),
		slog.String("key", key),
		slog.Int("attempts", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
	)
	return job, nil
}

// Get 返回指定任务的状态。
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// Lookup 按 kind/key 返回任务。
func (s *Service) Lookup(ctx context.Context, kind Kind, key string) (*Job, error) {
	return s.Get(ctx, JobID(kind, strings.TrimSpace(key)))
}

// StaleAfter 是任务停留在 pending/failed 多久后被视为丢失了队列消息。
const StaleAfter = 2 * time.Minute

// RequeueStale 重新投递 updated_at 早于 now-StaleAfter 且仍可领取的任务，
// 用于找回内存队列丢弃或 broker 丢失的消息。重复投递由 Claim 去重。
func (s *Service) RequeueStale(ctx context.Context, now time.Time) (int, error) {
	if s.store == nil || s.producer == nil {
		return 0, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")
	}
	jobs, err := s.store.List(ctx,
		WithStatuses(StatusPending, StatusFailed),
		WithUpdatedBefore(now.Add(-StaleAfter).Unix()),
	)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, job := range jobs {
		if job.Attempts >= job.MaxAttempts {
			continue
		}
		if err := s.producer.Publish(ctx, job.ID); err != nil {
			return requeued, xerrors.Wrap(CodeJobPublish, err, "重新投递任务失败")
		}
		requeued++
		logger.Audit().Info("job_requeued",
			slog.String("job_id", job.ID),
			slog.String("kind", string(job.Kind)),
			slog.String("key", job.Key),
			slog.Int("attempts", job.Attempts),
		)
	}
	return requeued, nil
}

// Close 释放队列资源。
func (s *Service) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
