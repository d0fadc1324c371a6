package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SandboxProvider 在本地模拟 Daraja：受理所有 STK Push，
// 在 delay 之后查询结果为成功。以 "254700000000" 发起的请求模拟用户取消。
type SandboxProvider struct {
	delay time.Duration
	now   func() time.Time

	mu      sync.Mutex
	pending map[string]sandboxPush
}

type sandboxPush struct {
	phone    string
	issuedAt time.Time
}

// SandboxCancelPhone 是 sandbox 中模拟用户取消支付的号码。
const SandboxCancelPhone = "254700000000"

// NewSandboxProvider 创建 sandbox 网关。
func NewSandboxProvider(delay time.Duration) *SandboxProvider {
	return &SandboxProvider{delay: delay, now: time.Now, pending: make(map[string]sandboxPush)}
}

// Name 实现 Provider。
func (p *SandboxProvider) Name() string { return "sandbox" }

// STKPush 实现 Provider。
func (p *SandboxProvider) STKPush(_ context.Context, req PushRequest) (*PushResponse, error) {
	checkoutID := "ws_CO_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	merchantID := uuid.NewString()
	p.mu.Lock()
	p.pending[checkoutID] = sandboxPush{phone: req.Phone, issuedAt: p.now()}
	p.mu.Unlock()
	return &PushResponse{
		CheckoutRequestID:   checkoutID,
		MerchantRequestID:   merchantID,
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

// Query 实现 Provider。
func (p *SandboxProvider) Query(_ context.Context, checkoutRequestID string) (*QueryResult, error) {
	p.mu.Lock()
	push, ok := p.pending[checkoutRequestID]
	p.mu.Unlock()
	if !ok {
		code := 2001
		return &QueryResult{ResultCode: &code, ResultDesc: "The initiator information is invalid."}, nil
	}
	if p.now().Sub(push.issuedAt) < p.delay {
		return &QueryResult{ResultDesc: "The transaction is being processed"}, nil
	}
	if push.phone == SandboxCancelPhone {
		code := ResultCancelledByUser
		return &QueryResult{ResultCode: &code, ResultDesc: "Request cancelled by user"}, nil
	}
	code := ResultSuccess
	return &QueryResult{
		ResultCode:    &code,
		ResultDesc:    "The service request is processed successfully.",
		ReceiptNumber: sandboxReceipt(checkoutRequestID),
	}, nil
}

func sandboxReceipt(checkoutRequestID string) string {
	id := strings.ToUpper(strings.TrimPrefix(checkoutRequestID, "ws_CO_"))
	if len(id) > 10 {
		id = id[:10]
	}
	return "SBX" + id
}
