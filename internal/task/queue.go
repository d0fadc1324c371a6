package task

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrQueueClosed 表示队列已关闭。
var ErrQueueClosed = errors.New("结算队列已关闭")

// Handler 处理一条队列消息，消息体是任务 ID。返回错误表示任务需要放回队列，
// 业务失败由处理器写入任务状态，不通过返回值表达。
type Handler func(ctx context.Context, jobID string) error

// Producer 负责投递结算任务。
type Producer interface {
	Publish(ctx context.Context, jobID string) error
	Close() error
}

// Consumer 以 workerCount 个协程消费任务，阻塞到 ctx 结束或队列不可用。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

// runWorkers 启动 n 个协程执行 loop，全部退出后返回第一个非 nil 错误，
// 某个协程出错时其余协程通过派生的 ctx 停止。
func runWorkers(ctx context.Context, n int, loop func(ctx context.Context) error) error {
	if n <= 0 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for range n {
		g.Go(func() error { return loop(ctx) })
	}
	return g.Wait()
}
