package scheduler

import (
	"context"
	"time"
)

// 画廊维护任务的名称，同时作为指标标签。
const (
	JobExhibitionStatuses = "exhibition_statuses"
	JobExpirePayments     = "expire_payments"
	JobPurgeCodes         = "purge_codes"
	JobRequeueSettlements = "requeue_settlements"
)

// Specs 是各任务的 cron 表达式，为空的任务不注册。
type Specs struct {
	ExhibitionStatuses string
	ExpirePayments     string
	PurgeCodes         string
}

// StatusRefresher 按日期重新计算展览状态，由 gallery.Service 实现。
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context, now time.Time) (int, error)
}

// PaymentExpirer 把超时未完成的交易标记为失败，由 payment.Service 实现。
type PaymentExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// SettlementRequeuer 重新投递丢失了队列消息的结算任务，由 task.Service 实现。
type SettlementRequeuer interface {
	RequeueStale(ctx context.Context, now time.Time) (int, error)
}

// CodePurger 清理过期的验证码，由 auth.MemoryCodeStore 实现。
type CodePurger interface {
	Purge(now time.Time) int
}

// AddGalleryJobs 注册画廊的三个维护任务。codes 为 nil 时跳过验证码清理，
// Redis 存储依赖键过期，不需要清理。
func (s *Scheduler) AddGalleryJobs(specs Specs, exhibitions StatusRefresher, payments PaymentExpirer, codes CodePurger) error {
	if exhibitions != nil {
		if err := s.Add(JobExhibitionStatuses, specs.ExhibitionStatuses, exhibitions.RefreshStatuses); err != nil {
			return err
		}
	}
	if payments != nil {
		if err := s.Add(JobExpirePayments, specs.ExpirePayments, payments.ExpireStale); err != nil {
			return err
		}
	}
	if codes != nil {
		purge := func(_ context.Context, now time.Time) (int, error) {
			return codes.Purge(now), nil
		}
		if err := s.Add(JobPurgeCodes, specs.PurgeCodes, purge); err != nil {
			return err
		}
	}
	return nil
}

// AddSettlementRecovery 注册结算任务的补投。只在启用了结算队列的进程中调用。
func (s *Scheduler) AddSettlementRecovery(spec string, tasks SettlementRequeuer) error {
	if tasks == nil {
		return nil
	}
	return s.Add(JobRequeueSettlements, spec, tasks.RequeueStale)
}
