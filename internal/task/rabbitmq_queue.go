package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"AfriArt-Gallery/pkg/logger"
)

// RabbitMQConfig 描述结算队列在 RabbitMQ 上的声明参数。
type RabbitMQConfig struct {
	URL        string
	Queue      string
	Prefetch   int
	Durable    bool
	AutoDelete bool
}

// RabbitMQQueue 通过默认交换机直接投递到结算队列。发布端开启 publisher confirm，
// Publish 返回 nil 即表示 broker 已接收；消费端手动 ack。
type RabbitMQQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   *slog.Logger

	// amqp.Channel 不允许并发发布。
	pubMu sync.Mutex
}

func NewRabbitMQQueue(cfg RabbitMQConfig) (*RabbitMQQueue, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	q := &RabbitMQQueue{queue: cfg.Queue, log: logger.Named("rabbitmq_queue")}
	if q.queue == "" {
		q.queue = "afriart.settlements"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	q.conn = conn
	if err := q.setup(cfg); err != nil {
		_ = q.Close()
		return nil, err
	}
	return q, nil
}

func (q *RabbitMQQueue) setup(cfg RabbitMQConfig) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	q.ch = ch
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("设置 RabbitMQ prefetch 失败: %w", err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("开启 RabbitMQ publisher confirm 失败: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("声明 RabbitMQ 队列 %s 失败: %w", q.queue, err)
	}
	return nil
}

// Publish 投递持久化消息并等待 broker 确认。
func (q *RabbitMQQueue) Publish(ctx context.Context, jobID string) error {
	if q == nil || q.ch == nil {
		return errors.New("RabbitMQ 队列未初始化")
	}
	q.pubMu.Lock()
	confirm, err := q.ch.PublishWithDeferredConfirmWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		MessageId:    jobID,
		Type:         string(KindPaymentSettlement),
		Timestamp:    time.Now().UTC(),
		Body:         []byte(jobID),
	})
	q.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("RabbitMQ 投递结算任务失败: %w", err)
	}
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("RabbitMQ 拒绝了结算任务 %s", jobID)
	}
	return nil
}

// Consume 手动确认消息，handler 失败时 nack 并重新入队。
func (q *RabbitMQQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if q == nil || q.ch == nil {
		return errors.New("RabbitMQ 队列未初始化")
	}
	deliveries, err := q.ch.ConsumeWithContext(ctx, q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("订阅 RabbitMQ 队列失败: %w", err)
	}

	err = runWorkers(ctx, workerCount, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case d, ok := <-deliveries:
				if !ok {
					return errors.New("RabbitMQ 消费通道已关闭")
				}
				q.settle(d, handler(ctx, string(d.Body)))
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

func (q *RabbitMQQueue) settle(d amqp.Delivery, handleErr error) {
	if handleErr == nil {
		if err := d.Ack(false); err != nil {
			q.log.Error("RabbitMQ ack 失败", slog.String("job_id", string(d.Body)), slog.Any("error", err))
		}
		return
	}
	if err := d.Nack(false, true); err != nil {
		q.log.Error("RabbitMQ 消息重新入队失败", slog.String("job_id", string(d.Body)), slog.Any("error", err))
	}
}

// Close 依次关闭 channel 与连接。
func (q *RabbitMQQueue) Close() error {
	if q == nil {
		return nil
	}
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
