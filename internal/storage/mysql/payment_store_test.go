package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/internal/payment"
)

var txColumns = []string{"id", "checkout_request_id", "merchant_request_id", "order_type", "order_id", "user_id",
	"phone_number", "amount", "account_reference", "status", "result_code", "result_desc", "receipt_number",
	"created_at", "updated_at", "settled_at"}

var paymentClock = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func newMockPaymentStore(t *testing.T) (*PaymentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	store := NewPaymentStore(db)
	store.now = func() time.Time { return paymentClock }
	return store, mock
}

func pendingRow(status string, resultCode any) *sqlmock.Rows {
	created := paymentClock.Add(-time.Minute)
	return sqlmock.NewRows(txColumns).AddRow(1, "ws_CO_1", "MR-1", "artwork", 4, 1, "254712345678", "2500.00",
		"ART-4", status, resultCode, "", "", created, created, nil)
}

func TestCreateTransactionDuplicate(t *testing.T) {
	store, mock := newMockPaymentStore(t)
	tx := &payment.Transaction{
		CheckoutRequestID: "ws_CO_1", MerchantRequestID: "MR-1", OrderKind: gallery.OrderArtwork, OrderID: 4,
		UserID: 1, PhoneNumber: "254712345678", Amount: decimal.NewFromInt(2500), AccountReference: "ART-4",
		Status: payment.StatusPending,
	}

	mock.ExpectExec("INSERT INTO mpesa_transactions").
		WithArgs("ws_CO_1", "MR-1", gallery.OrderArtwork, int64(4), int64(1), "254712345678", decimal.NewFromInt(2500),
			"ART-4", payment.StatusPending, paymentClock, paymentClock).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO mpesa_transactions").
		WillReturnError(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	if err := store.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.ID != 11 || !tx.CreatedAt.Equal(paymentClock) {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	err := store.CreateTransaction(context.Background(), tx)
	if xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRecordResultWritesOnlyWhilePending(t *testing.T) {
	store, mock := newMockPaymentStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM mpesa_transactions WHERE checkout_request_id = \\? FOR UPDATE").
		WithArgs("ws_CO_1").
		WillReturnRows(pendingRow("pending", nil))
	mock.ExpectExec("UPDATE mpesa_transactions SET status = \\?, result_code = \\?").
		WithArgs(payment.StatusCompleted, 0, "ok", "QGH7", paymentClock, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM mpesa_transactions WHERE checkout_request_id = \\? FOR UPDATE").
		WithArgs("ws_CO_1").
		WillReturnRows(pendingRow("completed", 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, written, err := store.RecordResult(ctx, "ws_CO_1", payment.Result{Code: 0, Description: "ok", ReceiptNumber: "QGH7"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !written || tx.Status != payment.StatusCompleted || tx.ReceiptNumber != "QGH7" {
		t.Fatalf("unexpected result written=%v tx=%+v", written, tx)
	}

	tx, written, err = store.RecordResult(ctx, "ws_CO_1", payment.Result{Code: 1032, Description: "cancelled"})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if written || tx.Status != payment.StatusCompleted || tx.ResultCode == nil || *tx.ResultCode != 0 {
		t.Fatalf("final result must not change, written=%v tx=%+v", written, tx)
	}
}

func TestMarkSettled(t *testing.T) {
	store, mock := newMockPaymentStore(t)
	at := paymentClock

	mock.ExpectExec("UPDATE mpesa_transactions SET settled_at = \\?").
		WithArgs(at, at, "ws_CO_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE mpesa_transactions SET settled_at = \\?").
		WithArgs(at, at, "ws_CO_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM mpesa_transactions WHERE checkout_request_id = \\?").
		WithArgs("ws_CO_1").
		WillReturnRows(pendingRow("completed", 0))
	mock.ExpectExec("UPDATE mpesa_transactions SET settled_at = \\?").
		WithArgs(at, at, "ws_CO_404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM mpesa_transactions WHERE checkout_request_id = \\?").
		WithArgs("ws_CO_404").
		WillReturnRows(sqlmock.NewRows(txColumns))

	ctx := context.Background()
	if claimed, err := store.MarkSettled(ctx, "ws_CO_1", at); err != nil || !claimed {
		t.Fatalf("first settle should claim, got %v %v", claimed, err)
	}
	if claimed, err := store.MarkSettled(ctx, "ws_CO_1", at); err != nil || claimed {
		t.Fatalf("second settle must not claim, got %v %v", claimed, err)
	}
	if _, err := store.MarkSettled(ctx, "ws_CO_404", at); !errors.Is(err, payment.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPendingBefore(t *testing.T) {
	store, mock := newMockPaymentStore(t)
	cutoff := paymentClock.Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM mpesa_transactions WHERE status = \\? AND created_at < \\? ORDER BY id").
		WithArgs(payment.StatusPending, cutoff).
		WillReturnRows(pendingRow("pending", nil))

	pending, err := store.ListPendingBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ResultCode != nil || pending[0].OrderKind != gallery.OrderArtwork {
		t.Fatalf("unexpected pending %+v", pending)
	}
}

func TestPendingForOrder(t *testing.T) {
	store, mock := newMockPaymentStore(t)

	mock.ExpectQuery("SELECT (.+) FROM mpesa_transactions\\s+WHERE order_type = \\? AND order_id = \\? AND status = \\? ORDER BY id LIMIT 1").
		WithArgs(gallery.OrderArtwork, int64(4), payment.StatusPending).
		WillReturnRows(pendingRow("pending", nil))
	mock.ExpectQuery("SELECT (.+) FROM mpesa_transactions").
		WithArgs(gallery.OrderExhibition, int64(8), payment.StatusPending).
		WillReturnRows(sqlmock.NewRows(txColumns))

	ctx := context.Background()
	tx, err := store.PendingForOrder(ctx, gallery.OrderArtwork, 4)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if tx == nil || tx.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	tx, err = store.PendingForOrder(ctx, gallery.OrderExhibition, 8)
	if err != nil || tx != nil {
		t.Fatalf("expected no pending transaction, got %+v, %v", tx, err)
	}
}
