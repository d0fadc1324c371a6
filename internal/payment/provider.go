package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// PushRequest 描述一次 STK Push。
type PushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// PushResponse 是网关受理 STK Push 后的应答。
type PushResponse struct {
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// QueryResult 是 STK 查询结果。ResultCode 为 nil 表示用户尚未完成操作。
// Daraja 的查询接口不返回收据号，收据只随回调到达。
type QueryResult struct {
	ResultCode    *int
	ResultDesc    string
	ReceiptNumber string
}

// Provider 是 M-Pesa 网关的抽象，daraja 与 sandbox 两种实现。
type Provider interface {
	Name() string
	STKPush(ctx context.Context, req PushRequest) (*PushResponse, error)
	Query(ctx context.Context, checkoutRequestID string) (*QueryResult, error)
}
