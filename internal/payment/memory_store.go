package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/gallery"
)

// MemoryStore 以内存方式保存交易，用于开发与测试。
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Transaction
	nextID int64
	now    func() time.Time
}

// NewMemoryStore 创建空的 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Transaction), nextID: 1, now: time.Now}
}

func cloneTransaction(tx *Transaction) *Transaction {
	c := *tx
	if tx.ResultCode != nil {
		code := *tx.ResultCode
		c.ResultCode = &code
	}
	if tx.SettledAt != nil {
		at := *tx.SettledAt
		c.SettledAt = &at
	}
	return &c
}

// CreateTransaction 实现 Store 接口。
func (m *MemoryStore) CreateTransaction(_ context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[tx.CheckoutRequestID]; exists {
		return xerrors.New(xerrors.CodeConflict, "Transaction already exists")
	}
	tx.ID = m.nextID
	m.nextID++
	now := m.now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	m.byID[tx.CheckoutRequestID] = cloneTransaction(tx)
	return nil
}

// GetTransaction 实现 Store 接口。
func (m *MemoryStore) GetTransaction(_ context.Context, checkoutRequestID string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byID[checkoutRequestID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return cloneTransaction(tx), nil
}

// RecordResult 实现 Store 接口。
func (m *MemoryStore) RecordResult(_ context.Context, checkoutRequestID string, result Result) (*Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byID[checkoutRequestID]
	if !ok {
		return nil, false, ErrTransactionNotFound
	}
	if tx.Status.Final() {
		return cloneTransaction(tx), false, nil
	}
	code := result.Code
	tx.ResultCode = &code
	tx.ResultDesc = result.Description
	tx.ReceiptNumber = result.ReceiptNumber
	tx.Status = StatusForResult(code)
	tx.UpdatedAt = m.now().UTC()
	return cloneTransaction(tx), true, nil
}

// MarkSettled 实现 Store 接口。
func (m *MemoryStore) MarkSettled(_ context.Context, checkoutRequestID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byID[checkoutRequestID]
	if !ok {
		return false, ErrTransactionNotFound
	}
	if tx.SettledAt != nil {
		return false, nil
	}
	settled := at.UTC()
	tx.SettledAt = &settled
	tx.UpdatedAt = settled
	return true, nil
}

// ListPendingBefore 实现 Store 接口，按创建时间升序返回。
func (m *MemoryStore) ListPendingBefore(_ context.Context, cutoff time.Time) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, 0)
	for _, tx := range m.byID {
		if tx.Status == StatusPending && tx.CreatedAt.Before(cutoff) {
			out = append(out, *cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PendingForOrder 实现 Store 接口，有多笔时返回最早的一笔。
func (m *MemoryStore) PendingForOrder(_ context.Context, kind gallery.OrderKind, orderID int64) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *Transaction
	for _, tx := range m.byID {
		if tx.Status != StatusPending || tx.OrderKind != kind || tx.OrderID != orderID {
			continue
		}
		if found == nil || tx.ID < found.ID {
			found = tx
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneTransaction(found), nil
}
