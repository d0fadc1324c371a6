package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"AfriArt-Gallery/internal/observability/metrics"
	"AfriArt-Gallery/pkg/logger"
)

// JobFunc 执行一次定时任务，返回本次处理的记录数。
type JobFunc func(ctx context.Context, now time.Time) (int, error)

// Scheduler 基于 cron 表达式运行后台维护任务，同一任务不会并发执行。
type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	now     func() time.Time
	timeout time.Duration

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]JobFunc
}

// Option 配置 Scheduler。
type Option func(*Scheduler)

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJobTimeout 限制单次任务的执行时长。
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New 创建调度器，时间按 UTC 计算。
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:     logger.Named("scheduler"),
		now:     time.Now,
		timeout: 2 * time.Minute,
		ctx:     context.Background(),
		jobs:    make(map[string]JobFunc),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	cronLog := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	return s
}

// Add 注册一个任务。spec 支持标准 5 段表达式与 @every、@hourly 等描述符，
// spec 为空表示禁用该任务。
func (s *Scheduler) Add(name, spec string, job JobFunc) error {
	if name == "" || job == nil {
		return errors.New("scheduler job requires a name and a function")
	}
	if spec == "" {
		s.log.Info("定时任务未启用", slog.String("job", name))
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.jobs[name] = job
	return nil
}

// Jobs 返回已注册的任务数量。
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// RunNow 立即执行指定任务一次，不受 cron 计划影响。
func (s *Scheduler) RunNow(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("scheduler job %q not registered", name)
	}
	return s.execute(ctx, name, job)
}

// Start 启动调度并阻塞到上下文取消，退出前等待正在执行的任务结束。
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("调度器已启动", slog.Int("jobs", s.Jobs()))
	<-ctx.Done()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(s.timeout):
		s.log.Warn("等待定时任务结束超时")
	}
	return ctx.Err()
}

func (s *Scheduler) run(name string, job JobFunc) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_, _ = s.execute(ctx, name, job)
}

func (s *Scheduler) execute(parent context.Context, name string, job JobFunc) (int, error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	affected, err := job(ctx, s.now().UTC())
	attrs := []slog.Attr{
		slog.String("job", name),
		slog.Int("affected", affected),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		metrics.ObserveJob(name, "failed")
		s.log.LogAttrs(ctx, slog.LevelError, "定时任务执行失败", append(attrs, slog.Any("error", err))...)
		return affected, err
	}
	metrics.ObserveJob(name, "succeeded")
	level := slog.LevelDebug
	if affected > 0 {
		level = slog.LevelInfo
	}
	s.log.LogAttrs(ctx, level, "定时任务完成", attrs...)
	return affected, nil
}

// cronLogger 把 cron 的内部日志接到 slog。
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
