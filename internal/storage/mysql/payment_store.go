package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/internal/payment"
)

// PaymentStore 实现 payment.Store，数据位于 mpesa_transactions 表。
type PaymentStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPaymentStore 基于已建立的连接池创建 PaymentStore。
func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db, now: time.Now}
}

const transactionColumns = `id, checkout_request_id, merchant_request_id, order_type, order_id, user_id,
        phone_number, amount, account_reference, status, result_code, result_desc, receipt_number,
        created_at, updated_at, settled_at`

func scanTransaction(row rowScanner) (*payment.Transaction, error) {
	var (
		tx         payment.Transaction
		resultCode sql.NullInt64
		settledAt  sql.NullTime
	)
	if err := row.Scan(&tx.ID, &tx.CheckoutRequestID, &tx.MerchantRequestID, &tx.OrderKind, &tx.OrderID, &tx.UserID,
		&tx.PhoneNumber, &tx.Amount, &tx.AccountReference, &tx.Status, &resultCode, &tx.ResultDesc, &tx.ReceiptNumber,
		&tx.CreatedAt, &tx.UpdatedAt, &settledAt); err != nil {
		return nil, err
	}
	if resultCode.Valid {
		code := int(resultCode.Int64)
		tx.ResultCode = &code
	}
	if settledAt.Valid {
		at := settledAt.Time
		tx.SettledAt = &at
	}
	return &tx, nil
}

// CreateTransaction 实现 payment.Store。
func (s *PaymentStore) CreateTransaction(ctx context.Context, tx *payment.Transaction) error {
	now := s.now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, `INSERT INTO mpesa_transactions
        (checkout_request_id, merchant_request_id, order_type, order_id, user_id, phone_number, amount,
         account_reference, status, result_desc, receipt_number, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?)`,
		tx.CheckoutRequestID, tx.MerchantRequestID, tx.OrderKind, tx.OrderID, tx.UserID, tx.PhoneNumber, tx.Amount,
		tx.AccountReference, tx.Status, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return xerrors.New(xerrors.CodeConflict, "Transaction already exists")
		}
		return storageError(err, "写入交易失败")
	}
	return assignID(res, &tx.ID)
}

// GetTransaction 实现 payment.Store。
func (s *PaymentStore) GetTransaction(ctx context.Context, checkoutRequestID string) (*payment.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM mpesa_transactions WHERE checkout_request_id = ?`, checkoutRequestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound
		}
		return nil, storageError(err, "读取交易失败")
	}
	return tx, nil
}

// RecordResult 实现 payment.Store。行锁保证回调与状态查询并发到达时只写入一次。
func (s *PaymentStore) RecordResult(ctx context.Context, checkoutRequestID string, result payment.Result) (*payment.Transaction, bool, error) {
	var (
		out     *payment.Transaction
		written bool
	)
	err := withTx(ctx, s.db, func(sqlTx *sql.Tx) error {
		tx, err := scanTransaction(sqlTx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM mpesa_transactions WHERE checkout_request_id = ? FOR UPDATE`, checkoutRequestID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return payment.ErrTransactionNotFound
			}
			return storageError(err, "锁定交易失败")
		}
		if tx.Status.Final() {
			out = tx
			return nil
		}

		code := result.Code
		tx.ResultCode = &code
		tx.ResultDesc = result.Description
		tx.ReceiptNumber = result.ReceiptNumber
		tx.Status = payment.StatusForResult(code)
		tx.UpdatedAt = s.now().UTC()
		if _, err := sqlTx.ExecContext(ctx, `UPDATE mpesa_transactions
            SET status = ?, result_code = ?, result_desc = ?, receipt_number = ?, updated_at = ?
            WHERE id = ?`,
			tx.Status, code, tx.ResultDesc, tx.ReceiptNumber, tx.UpdatedAt, tx.ID); err != nil {
			return storageError(err, "写入交易结果失败")
		}
		out, written = tx, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, written, nil
}

// MarkSettled 实现 payment.Store。
func (s *PaymentStore) MarkSettled(ctx context.Context, checkoutRequestID string, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE mpesa_transactions SET settled_at = ?, updated_at = ?
        WHERE checkout_request_id = ? AND settled_at IS NULL`, at, at, checkoutRequestID)
	if err != nil {
		return false, storageError(err, "标记结算失败")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError(err, "读取影响行数失败")
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.GetTransaction(ctx, checkoutRequestID); err != nil {
		return false, err
	}
	return false, nil
}

// ListPendingBefore 实现 payment.Store，按 id 升序返回。
func (s *PaymentStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]payment.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM mpesa_transactions
        WHERE status = ? AND created_at < ? ORDER BY id`, payment.StatusPending, cutoff.UTC())
	if err != nil {
		return nil, storageError(err, "查询待处理交易失败")
	}
	defer rows.Close()

	out := make([]payment.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storageError(err, "读取交易失败")
		}
		out = append(out, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历交易失败")
	}
	return out, nil
}

// PendingForOrder 实现 payment.Store。
func (s *PaymentStore) PendingForOrder(ctx context.Context, kind gallery.OrderKind, orderID int64) (*payment.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM mpesa_transactions
        WHERE order_type = ? AND order_id = ? AND status = ? ORDER BY id LIMIT 1`, kind, orderID, payment.StatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError(err, "查询订单待处理交易失败")
	}
	return tx, nil
}
