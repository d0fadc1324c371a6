package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/internal/mail"
	"AfriArt-Gallery/internal/observability/alerting"
	"AfriArt-Gallery/internal/observability/metrics"
	"AfriArt-Gallery/internal/task"
	"AfriArt-Gallery/pkg/logger"
)

// Orders 是支付依赖的订单能力，由 gallery.Service 实现。
type Orders interface {
	PaymentTarget(ctx context.Context, kind gallery.OrderKind, id int64) (*gallery.PaymentTarget, error)
	SettlePayment(ctx context.Context, kind gallery.OrderKind, id int64, success bool) error
}

// Settlements 把结算任务交给后台执行，由 task.Service 实现。
type Settlements interface {
	Submit(ctx context.Context, kind task.Kind, key string) (*task.Job, error)
}

// Service 负责 STK Push 的发起、状态查询、回调处理与结算。
type Service struct {
	store       Store
	provider    Provider
	orders      Orders
	settlements Settlements
	mailer      mail.Sender
	alerter     alerting.Dispatcher
	expiry      time.Duration
	now         func() time.Time
	audit       *slog.Logger
	log         *slog.Logger
}

// Option 配置 Service。
type Option func(*Service)

// WithSettlements 让结算经由任务队列异步执行；未配置时在当前请求内同步结算。
func WithSettlements(settlements Settlements) Option {
	return func(s *Service) { s.settlements = settlements }
}

// WithMailer 配置支付成功邮件的发送器。
func WithMailer(sender mail.Sender) Option {
	return func(s *Service) { s.mailer = sender }
}

// WithAlertDispatcher 配置网关故障告警。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) Option {
	return func(s *Service) { s.alerter = dispatcher }
}

// WithPendingExpiry 设置 pending 交易被判定为超时的时长。
func WithPendingExpiry(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService 创建支付服务。
func NewService(store Store, provider Provider, orders Orders, opts ...Option) (*Service, error) {
	if store == nil || provider == nil || orders == nil {
		return nil, errors.New("payment service requires a store, a provider and an order source")
	}
	s := &Service{
		store:    store,
		provider: provider,
		orders:   orders,
		expiry:   30 * time.Minute,
		now:      time.Now,
		audit:    logger.Audit(),
		log:      logger.Named("payment"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Initiate 校验订单与金额后向用户手机发起 STK Push，并记录 pending 交易。
// 金额为 0 时取订单金额。
func (s *Service) Initiate(ctx context.Context, subject *auth.Subject, req InitiateRequest) (*InitiateResponse, error) {
	if err := auth.RequireAuthenticated(subject); err != nil {
		return nil, err
	}
	if err := gallery.Validate(&req); err != nil {
		return nil, err
	}
	kind, err := gallery.ParseOrderKind(req.OrderType)
	if err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	target, err := s.orders.PaymentTarget(ctx, kind, int64(req.OrderID))
	if err != nil {
		return nil, err
	}
	if err := auth.CanPayFor(subject, target.UserID); err != nil {
		s.audit.Warn("access_denied",
			slog.String("action", "payment_initiate"),
			slog.String("subject", subject.String()),
			slog.Int64("order_id", target.ID),
		)
		return nil, err
	}
	if req.UserID != 0 && int64(req.UserID) != target.UserID {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Order does not belong to this user")
	}
	switch target.Payment {
	case gallery.PaymentCompleted:
		return nil, xerrors.New(CodeOrderNotPayable, "Order has already been paid")
	case gallery.PaymentFailed:
		return nil, xerrors.New(CodeOrderNotPayable, "Order payment failed. Please place a new order")
	}
	if kind == gallery.OrderArtwork && target.Artwork != gallery.ArtworkAvailable {
		return nil, gallery.ErrArtworkUnavailable
	}
	inflight, err := s.store.PendingForOrder(ctx, kind, target.ID)
	if err != nil {
		return nil, err
	}
	if inflight != nil {
		return nil, xerrors.New(CodeOrderNotPayable, "A payment request for this order is already in progress",
			xerrors.WithMetadata("checkout_request_id", inflight.CheckoutRequestID))
	}

	amount := req.Amount
	if amount.IsZero() {
		amount = target.Amount
	}
	if !amount.Equal(target.Amount) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("Amount does not match the order total of KES %s", target.Amount.StringFixed(2)))
	}
	if !amount.IsPositive() {
		return nil, xerrors.New(CodeOrderNotPayable, "Order has nothing to pay")
	}

	reference := strings.TrimSpace(req.AccountReference)
	if reference == "" {
		reference = accountReference(kind, target.ID)
	}
	push, err := s.provider.STKPush(ctx, PushRequest{
		Phone:            phone,
		Amount:           amount,
		AccountReference: reference,
		Description:      description(target.Title),
	})
	if err != nil {
		if _, ok := xerrors.From(err); !ok {
			err = xerrors.Wrap(xerrors.CodePaymentFailure, err, "M-Pesa request failed", xerrors.WithRetryable(true))
		}
		s.log.Error("STK Push 失败",
			slog.String("provider", s.provider.Name()),
			slog.String("order_type", string(kind)),
			slog.Int64("order_id", target.ID),
			slog.Any("error", err),
		)
		metrics.ObservePayment("initiate", "error")
		s.emitAlert(ctx, reference, err, map[string]string{"stage": "stk_push", "order_type": string(kind)})
		return nil, err
	}

	tx := &Transaction{
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		OrderKind:         kind,
		OrderID:           target.ID,
		UserID:            target.UserID,
		PhoneNumber:       phone,
		Amount:            amount,
		AccountReference:  reference,
		Status:            StatusPending,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	metrics.ObservePayment("initiated", string(StatusPending))
	s.audit.Info("payment_initiated",
		slog.String("checkout_request_id", tx.CheckoutRequestID),
		slog.String("order_type", string(kind)),
		slog.Int64("order_id", tx.OrderID),
		slog.String("amount", amount.String()),
		slog.String("subject", subject.String()),
	)
	return &InitiateResponse{
		CheckoutRequestID:   push.CheckoutRequestID,
		MerchantRequestID:   push.MerchantRequestID,
		ResponseDescription: push.ResponseDescription,
		CustomerMessage:     push.CustomerMessage,
	}, nil
}

// Status 返回交易状态。仍为 pending 时先向网关查询，拿到最终结果则写入并安排结算。
// 只有交易所属用户与管理员可以查询。
func (s *Service) Status(ctx context.Context, subject *auth.Subject, checkoutRequestID string) (*StatusResponse, error) {
	if err := auth.RequireAuthenticated(subject); err != nil {
		return nil, err
	}
	tx, err := s.store.GetTransaction(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	if !subject.IsAdmin() && !(subject.IsUser() && subject.ID == tx.UserID) {
		return nil, auth.PermissionDenied("Unauthorized access: You can only view your own payments")
	}
	if tx.Status == StatusPending {
		query, qErr := s.provider.Query(ctx, checkoutRequestID)
		switch {
		case qErr != nil:
			s.log.Warn("STK 查询失败，返回本地状态",
				slog.String("checkout_request_id", checkoutRequestID),
				slog.Any("error", qErr),
			)
		case query.ResultCode != nil:
			tx, err = s.record(ctx, checkoutRequestID, Result{
				Code:          *query.ResultCode,
				Description:   query.ResultDesc,
				ReceiptNumber: query.ReceiptNumber,
			}, "query")
			if err != nil {
				return nil, err
			}
		}
	}
	if tx.Status.Final() && tx.SettledAt == nil {
		s.enqueue(ctx, tx.CheckoutRequestID)
	}
	return statusResponse(tx), nil
}

// HandleCallback 处理 Daraja 回调。重复回调不会改变已写入的结果。
func (s *Service) HandleCallback(ctx context.Context, body []byte) error {
	cb, err := ParseCallback(body)
	if err != nil {
		s.log.Warn("无法解析 M-Pesa 回调", slog.Any("error", err))
		return err
	}
	tx, err := s.record(ctx, cb.CheckoutRequestID, cb.Result, "callback")
	if err != nil {
		return err
	}
	if tx.SettledAt == nil {
		s.enqueue(ctx, tx.CheckoutRequestID)
	}
	return nil
}

// record 写入最终结果，交易已有结果时原样返回。
func (s *Service) record(ctx context.Context, checkoutRequestID string, result Result, source string) (*Transaction, error) {
	tx, written, err := s.store.RecordResult(ctx, checkoutRequestID, result)
	if err != nil {
		return nil, err
	}
	if !written {
		s.log.Info("交易结果已存在，忽略重复结果",
			slog.String("checkout_request_id", checkoutRequestID),
			slog.String("source", source),
			slog.String("status", string(tx.Status)),
		)
		return tx, nil
	}
	metrics.ObservePayment(source, string(tx.Status))
	s.audit.Info("payment_result_recorded",
		slog.String("checkout_request_id", checkoutRequestID),
		slog.String("source", source),
		slog.String("status", string(tx.Status)),
		slog.Int("result_code", result.Code),
		slog.String("receipt", result.ReceiptNumber),
	)
	return tx, nil
}

// enqueue 安排结算。失败只记录日志，下一次状态查询会再次安排。
func (s *Service) enqueue(ctx context.Context, checkoutRequestID string) {
	if s.settlements == nil {
		if err := s.Settle(ctx, checkoutRequestID); err != nil {
			s.log.Error("同步结算失败", slog.String("checkout_request_id", checkoutRequestID), slog.Any("error", err))
		}
		return
	}
	if _, err := s.settlements.Submit(ctx, task.KindPaymentSettlement, checkoutRequestID); err != nil {
		s.log.Error("结算任务入队失败", slog.String("checkout_request_id", checkoutRequestID), slog.Any("error", err))
	}
}

// Settle 把交易结果结算到订单：成功则订单已付款（作品售出或门票生效），
// 失败或取消则订单付款失败并释放预订的展位。按 CheckoutRequestID 幂等，
// 支付成功邮件只在首次结算时发送。订单已关闭时的成功扣款不入账，
// 交易照常标记为已结算并发出退款告警。
func (s *Service) Settle(ctx context.Context, checkoutRequestID string) error {
	tx, err := s.store.GetTransaction(ctx, checkoutRequestID)
	if err != nil {
		return err
	}
	if !tx.Status.Final() {
		s.log.Warn("交易仍为 pending，跳过结算", slog.String("checkout_request_id", checkoutRequestID))
		return nil
	}
	if tx.SettledAt != nil {
		return nil
	}
	success := tx.Status == StatusCompleted
	outcome := string(tx.Status)
	if err := s.orders.SettlePayment(ctx, tx.OrderKind, tx.OrderID, success); err != nil {
		if !errors.Is(err, gallery.ErrSettlementConflict) {
			return err
		}
		// 订单已按另一笔交易定为失败，这笔扣款不再入账，交给人工退款。
		success = false
		outcome = "conflict"
		s.log.Error("支付成功但订单已关闭，需要退款核对",
			slog.String("checkout_request_id", checkoutRequestID),
			slog.String("order_type", string(tx.OrderKind)),
			slog.Int64("order_id", tx.OrderID),
			slog.String("receipt", tx.ReceiptNumber),
		)
		s.emitAlert(ctx, tx.AccountReference, err, map[string]string{
			"stage":               "settlement",
			"checkout_request_id": checkoutRequestID,
			"receipt":             tx.ReceiptNumber,
			"amount":              tx.Amount.StringFixed(2),
		})
	}
	claimed, err := s.store.MarkSettled(ctx, checkoutRequestID, s.now())
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	metrics.ObservePayment("settled", outcome)
	s.audit.Info("payment_settled",
		slog.String("checkout_request_id", checkoutRequestID),
		slog.String("order_type", string(tx.OrderKind)),
		slog.Int64("order_id", tx.OrderID),
		slog.String("status", string(tx.Status)),
		slog.String("outcome", outcome),
	)
	if success {
		s.sendConfirmation(ctx, tx)
	}
	return nil
}

func (s *Service) sendConfirmation(ctx context.Context, tx *Transaction) {
	if s.mailer == nil {
		return
	}
	target, err := s.orders.PaymentTarget(ctx, tx.OrderKind, tx.OrderID)
	if err != nil {
		s.log.Warn("加载订单失败，跳过支付确认邮件", slog.Int64("order_id", tx.OrderID), slog.Any("error", err))
		return
	}
	if target.UserEmail == "" {
		return
	}
	msg, err := mail.PaymentConfirmation(target.UserEmail, mail.PaymentReceipt{
		Name:          target.UserName,
		Item:          target.Title,
		Amount:        "KES " + tx.Amount.StringFixed(2),
		ReceiptNumber: tx.ReceiptNumber,
		TicketCode:    target.TicketCode,
	})
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Error("支付确认邮件发送失败", slog.String("checkout_request_id", tx.CheckoutRequestID), slog.Any("error", err))
	}
}

// ExpireStale 处理创建时间早于 now-expiry 仍为 pending 的交易：网关已有结果则采用，
// 否则记为失败（Payment request expired），随后安排结算。返回处理的交易数。
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.store.ListPendingBefore(ctx, now.Add(-s.expiry))
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, tx := range stale {
		result := Result{Code: ResultExpired, Description: "Payment request expired"}
		if query, qErr := s.provider.Query(ctx, tx.CheckoutRequestID); qErr == nil && query.ResultCode != nil {
			result = Result{Code: *query.ResultCode, Description: query.ResultDesc, ReceiptNumber: query.ReceiptNumber}
		}
		recorded, err := s.record(ctx, tx.CheckoutRequestID, result, "expiry")
		if err != nil {
			return handled, err
		}
		if recorded.SettledAt == nil {
			s.enqueue(ctx, tx.CheckoutRequestID)
		}
		handled++
	}
	return handled, nil
}

func (s *Service) emitAlert(ctx context.Context, reference string, cause error, metadata map[string]string) {
	if s.alerter == nil {
		return
	}
	code := xerrors.CodeOf(cause)
	metadata = maps.Clone(metadata)
	if e, ok := xerrors.From(cause); ok {
		for k, v := range e.Metadata() {
			if metadata == nil {
				metadata = map[string]string{}
			}
			if _, exists := metadata[k]; !exists {
				metadata[k] = v
			}
		}
	}
	if err := s.alerter.Notify(ctx, alerting.Event{
		Code:       code,
		Message:    cause.Error(),
		Severity:   xerrors.SeverityOf(cause),
		Source:     "mpesa:" + s.provider.Name(),
		Reference:  reference,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}); err != nil {
		s.log.Error("告警通知失败", slog.Any("error", err))
	}
}

// accountReference 生成不超过 12 个字符的账户参考号，例如 ART-42、EXH-7。
func accountReference(kind gallery.OrderKind, id int64) string {
	prefix := "ART"
	if kind == gallery.OrderExhibition {
		prefix = "EXH"
	}
	return fmt.Sprintf("%s-%d", prefix, id)
}

func description(title string) string {
	// Daraja 限制 TransactionDesc 不超过 13 个字符。
	desc := []rune("AfriArt " + strings.TrimSpace(title))
	if len(desc) > 13 {
		desc = desc[:13]
	}
	return strings.TrimSpace(string(desc))
}
