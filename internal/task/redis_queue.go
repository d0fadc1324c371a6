package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"AfriArt-Gallery/pkg/logger"
)

// RedisQueueConfig 描述 Redis 队列参数，连接由调用方共享传入。
type RedisQueueConfig struct {
	Queue     string
	BlockWait time.Duration
}

// RedisQueue 使用 Redis list 作为结算队列。消费时通过 BLMOVE 把任务原子地
// 移入 <queue>:processing，处理结束后再移除，消费者崩溃时任务不会丢失。
type RedisQueue struct {
	client     *redis.Client
	queue      string
	processing string
	wait       time.Duration
	log        *slog.Logger
}

func NewRedisQueue(client *redis.Client, cfg RedisQueueConfig) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("Redis 客户端未初始化")
	}
	q := &RedisQueue{
		client: client,
		queue:  cfg.Queue,
		wait:   cfg.BlockWait,
		log:    logger.Named("redis_queue"),
	}
	if q.queue == "" {
		q.queue = "afriart:settlements"
	}
	if q.wait <= 0 {
		q.wait = 5 * time.Second
	}
	q.processing = q.queue + ":processing"
	return q, nil
}

// Publish 从左侧入队，消费者从右侧取出，保持先进先出。
func (q *RedisQueue) Publish(ctx context.Context, jobID string) error {
	if err := q.client.LPush(ctx, q.queue, jobID).Err(); err != nil {
		return fmt.Errorf("Redis 投递结算任务失败: %w", err)
	}
	return nil
}

// Consume 先把上次遗留在 processing 列表中的任务放回队列，再启动消费协程。
// 任务处理结果以任务存储为准，重复消费同一任务是安全的。
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if n, err := q.restore(ctx); err != nil {
		return err
	} else if n > 0 {
		q.log.Warn("恢复未确认的结算任务", slog.Int("count", n))
	}

	err := runWorkers(ctx, workerCount, func(ctx context.Context) error {
		for ctx.Err() == nil {
			jobID, err := q.client.BLMove(ctx, q.queue, q.processing, "RIGHT", "LEFT", q.wait).Result()
			switch {
			case errors.Is(err, redis.Nil):
				continue
			case err != nil:
				if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
					return nil
				}
				return fmt.Errorf("Redis 领取结算任务失败: %w", err)
			}
			q.finish(ctx, jobID, handler(ctx, jobID))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

// finish 从 processing 移除任务；handler 失败时放回队尾等待下一轮。
func (q *RedisQueue) finish(ctx context.Context, jobID string, handleErr error) {
	// 关停时 ctx 已取消，确认操作仍需完成。
	ctx = context.WithoutCancel(ctx)
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, jobID)
		if handleErr != nil {
			pipe.LPush(ctx, q.queue, jobID)
		}
		return nil
	})
	if err != nil {
		q.log.Error("确认结算任务失败", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

func (q *RedisQueue) restore(ctx context.Context) (int, error) {
	restored := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.queue, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return restored, nil
		}
		if err != nil {
			return restored, fmt.Errorf("Redis 恢复结算任务失败: %w", err)
		}
		restored++
	}
}

// Close 不关闭连接，连接与验证码存储共用，由创建方关闭。
func (q *RedisQueue) Close() error { return nil }
