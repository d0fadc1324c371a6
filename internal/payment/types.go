package payment

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/gallery"
)

// Status 是交易在本地的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Final 表示交易结果已确定。
func (s Status) Final() bool { return s != StatusPending }

// Daraja 结果码。
const (
	ResultSuccess         = 0
	ResultCancelledByUser = 1032
	// ResultExpired 为本地超时未收到结果时写入的结果码。
	ResultExpired = 1037
)

// StatusForResult 把网关结果码映射为本地状态。
func StatusForResult(code int) Status {
	switch code {
	case ResultSuccess:
		return StatusCompleted
	case ResultCancelledByUser:
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Transaction 记录一次 STK Push。
type Transaction struct {
	ID                int64             `json:"id"`
	CheckoutRequestID string            `json:"checkoutRequestId"`
	MerchantRequestID string            `json:"merchantRequestId"`
	OrderKind         gallery.OrderKind `json:"orderType"`
	OrderID           int64             `json:"orderId"`
	UserID            int64             `json:"userId"`
	PhoneNumber       string            `json:"phoneNumber"`
	Amount            decimal.Decimal   `json:"amount"`
	AccountReference  string            `json:"accountReference"`
	Status            Status            `json:"status"`
	ResultCode        *int              `json:"resultCode,omitempty"`
	ResultDesc        string            `json:"resultDesc,omitempty"`
	ReceiptNumber     string            `json:"receiptNumber,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	SettledAt         *time.Time        `json:"settledAt,omitempty"`
}

// Result 是网关给出的最终结果。
type Result struct {
	Code          int
	Description   string
	ReceiptNumber string
}

// InitiateRequest 是 POST /mpesa/stk-push 的请求体。
type InitiateRequest struct {
	PhoneNumber      string          `json:"phoneNumber" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
	OrderType        string          `json:"orderType" validate:"required"`
	OrderID          gallery.FlexID  `json:"orderId" validate:"required"`
	UserID           gallery.FlexID  `json:"userId"`
	AccountReference string          `json:"accountReference" validate:"max=12"`
}

// InitiateResponse 返回给客户端，用于后续轮询状态。
type InitiateResponse struct {
	CheckoutRequestID   string `json:"checkoutRequestId"`
	MerchantRequestID   string `json:"merchantRequestId"`
	ResponseDescription string `json:"responseDescription"`
	CustomerMessage     string `json:"customerMessage"`
}

// StatusResponse 是 GET /mpesa/status/{id} 的响应体。
type StatusResponse struct {
	CheckoutRequestID string            `json:"checkoutRequestId"`
	Status            Status            `json:"status"`
	ResultCode        *int              `json:"resultCode,omitempty"`
	ResultDesc        string            `json:"resultDesc,omitempty"`
	ReceiptNumber     string            `json:"receiptNumber,omitempty"`
	OrderType         gallery.OrderKind `json:"orderType"`
	OrderID           int64             `json:"orderId"`
	Amount            decimal.Decimal   `json:"amount"`
}

func statusResponse(tx *Transaction) *StatusResponse {
	return &StatusResponse{
		CheckoutRequestID: tx.CheckoutRequestID,
		Status:            tx.Status,
		ResultCode:        tx.ResultCode,
		ResultDesc:        tx.ResultDesc,
		ReceiptNumber:     tx.ReceiptNumber,
		OrderType:         tx.OrderKind,
		OrderID:           tx.OrderID,
		Amount:            tx.Amount,
	}
}

const (
	CodeTransactionNotFound xerrors.Code = "TRANSACTION_NOT_FOUND"
	CodeOrderNotPayable     xerrors.Code = "ORDER_NOT_PAYABLE"
	CodeInvalidCallback     xerrors.Code = "INVALID_CALLBACK"
)

func init() {
	xerrors.Register(CodeTransactionNotFound, xerrors.Attributes{Message: "Transaction not found", Severity: xerrors.SeverityInfo})
	xerrors.RegisterStatus(CodeTransactionNotFound, http.StatusNotFound)
	xerrors.Register(CodeOrderNotPayable, xerrors.Attributes{Message: "Order cannot be paid", Severity: xerrors.SeverityInfo})
	xerrors.RegisterStatus(CodeOrderNotPayable, http.StatusConflict)
	xerrors.Register(CodeInvalidCallback, xerrors.Attributes{Message: "Invalid callback payload", Severity: xerrors.SeverityWarning})
	xerrors.RegisterStatus(CodeInvalidCallback, http.StatusBadRequest)
}

// ErrTransactionNotFound 表示 CheckoutRequestID 没有对应的交易。
var ErrTransactionNotFound = xerrors.New(CodeTransactionNotFound, "Transaction not found")
