package task

import (
	"context"

	xerrors "AfriArt-Gallery/internal/errors"
)

// Store 抽象了任务状态的持久化接口。
//
// Claim 只领取 pending 或 failed 且尚未耗尽次数的任务，并把 attempts 加一；
// 其余情况返回 ErrJobCompleted、ErrJobConflict 或 ErrJobExhausted 以及任务当前状态。
// MarkFailed 的 terminal 为 true 时任务进入 abandoned，不再被领取。
// List 按 updated_at 升序返回匹配的任务，用于找回队列中丢失的任务。
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Claim(ctx context.Context, id string) (*Job, error)
	MarkSucceeded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error
	List(ctx context.Context, opts ...ListOption) ([]Job, error)
}
