package payment

import (
	"context"
	"time"

	"AfriArt-Gallery/internal/gallery"
)

// Store 持久化 M-Pesa 交易。
//
// RecordResult 只在交易仍为 pending 时写入结果，返回交易的最新状态以及本次是否写入。
// MarkSettled 只在 settled_at 为空时写入，返回本次调用是否抢到了结算。
// PendingForOrder 返回订单上仍为 pending 的交易，没有时返回 nil。
type Store interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, checkoutRequestID string) (*Transaction, error)
	RecordResult(ctx context.Context, checkoutRequestID string, result Result) (*Transaction, bool, error)
	MarkSettled(ctx context.Context, checkoutRequestID string, at time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Transaction, error)
	PendingForOrder(ctx context.Context, kind gallery.OrderKind, orderID int64) (*Transaction, error)
}
