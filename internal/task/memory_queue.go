package task

import (
	"context"
	"sync"
)

// MemoryQueue 基于带缓冲 channel，适合单实例部署与测试。
type MemoryQueue struct {
	jobs chan string

	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{jobs: make(chan string, size)}
}

// Publish 在缓冲区满时阻塞，直到有空位或 ctx 结束。
func (q *MemoryQueue) Publish(ctx context.Context, jobID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len 返回积压的任务数。
func (q *MemoryQueue) Len() int { return len(q.jobs) }

// Consume 不重投 handler 失败的任务。处理器只在存储不可用时返回错误，
// 任务仍以 pending 状态留在存储中，由 Service.RequeueStale 定期补投。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	err := runWorkers(ctx, workerCount, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case jobID, ok := <-q.jobs:
				if !ok {
					return nil
				}
				_ = handler(ctx, jobID)
			}
		}
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
