package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"AfriArt-Gallery/internal/mail"
)

type failingSender struct{}

func (failingSender) Send(context.Context, mail.Message) error { return errors.New("smtp down") }

func newTestTwoFactor(now *time.Time) (*TwoFactor, *MemoryCodeStore, *mail.LogSender) {
	store := NewMemoryCodeStore()
	sender := mail.NewLogSender()
	tf := NewTwoFactor(store, sender, 10*time.Minute)
	tf.now = func() time.Time { return *now }
	tf.generate = func() (string, error) { return "4821", nil }
	return tf, store, sender
}

func TestTwoFactorSendAndVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tf, _, sender := newTestTwoFactor(&now)
	ctx := context.Background()

	if err := tf.Send(ctx, "Zola@example.com", RoleUser); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, ok := sender.Last()
	if !ok || msg.To[0] != "Zola@example.com" || !strings.Contains(msg.Text, "4821") {
		t.Fatalf("unexpected mail %+v", msg)
	}
	if msg.Subject != "Your Verification Code" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}

	if err := tf.Verify(ctx, "zola@example.com", "0000", RoleUser); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := tf.Verify(ctx, "zola@example.com", "4821", RoleArtist); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("codes are scoped per role, got %v", err)
	}
	if err := tf.Verify(ctx, "zola@example.com", "4821", RoleUser); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := tf.Verify(ctx, "zola@example.com", "4821", RoleUser); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("codes are single use, got %v", err)
	}
}

func TestTwoFactorExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tf, store, _ := newTestTwoFactor(&now)
	ctx := context.Background()
	if err := tf.Send(ctx, "k@example.com", RoleArtist); err != nil {
		t.Fatalf("send: %v", err)
	}
	now = now.Add(11 * time.Minute)
	err := tf.Verify(ctx, "k@example.com", "4821", RoleArtist)
	if !errors.Is(err, ErrCodeExpired) || !IsCodeError(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if _, err := store.Load(ctx, CodeKey("k@example.com", RoleArtist)); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expired code should be deleted, got %v", err)
	}
}

func TestTwoFactorCodeVerifiesOnceUnderConcurrency(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tf, _, _ := newTestTwoFactor(&now)
	ctx := context.Background()
	if err := tf.Send(ctx, "race@example.com", RoleUser); err != nil {
		t.Fatalf("send: %v", err)
	}

	var (
		wg       sync.WaitGroup
		verified atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tf.Verify(ctx, "race@example.com", "4821", RoleUser) == nil {
				verified.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := verified.Load(); got != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", got)
	}
}

func TestMemoryCodeStoreConsumeKeepsCodeOnMismatch(t *testing.T) {
	store := NewMemoryCodeStore()
	ctx := context.Background()
	_ = store.Save(ctx, "k", StoredCode{Code: "4821", ExpiresAt: time.Now().Add(time.Minute)})

	if stored, err := store.Consume(ctx, "k", "0000"); err != nil || stored.Code != "4821" {
		t.Fatalf("consume mismatch: %+v %v", stored, err)
	}
	if _, err := store.Load(ctx, "k"); err != nil {
		t.Fatalf("mismatch must keep the code: %v", err)
	}
	if _, err := store.Consume(ctx, "k", "4821"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := store.Consume(ctx, "k", "4821"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected not found after consume, got %v", err)
	}
}

func TestTwoFactorResendReplacesCode(t *testing.T) {
	now := time.Now()
	tf, _, _ := newTestTwoFactor(&now)
	ctx := context.Background()
	_ = tf.Send(ctx, "r@example.com", RoleUser)
	tf.generate = func() (string, error) { return "1111", nil }
	_ = tf.Send(ctx, "r@example.com", RoleUser)
	if err := tf.Verify(ctx, "r@example.com", "4821", RoleUser); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("old code should be replaced, got %v", err)
	}
	if err := tf.Verify(ctx, "r@example.com", "1111", RoleUser); err != nil {
		t.Fatalf("verify new code: %v", err)
	}
}

func TestTwoFactorSendFailure(t *testing.T) {
	tf := NewTwoFactor(NewMemoryCodeStore(), failingSender{}, time.Minute)
	err := tf.Send(context.Background(), "f@example.com", RoleUser)
	if err == nil || !strings.Contains(err.Error(), "Failed to send email: smtp down") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 4 || code < "1000" || code > "9999" {
			t.Fatalf("unexpected code %q", code)
		}
	}
}

func TestMemoryCodeStorePurge(t *testing.T) {
	store := NewMemoryCodeStore()
	now := time.Now()
	ctx := context.Background()
	_ = store.Save(ctx, "a", StoredCode{Code: "1", ExpiresAt: now.Add(-time.Second)})
	_ = store.Save(ctx, "b", StoredCode{Code: "2", ExpiresAt: now.Add(time.Minute)})
	if removed := store.Purge(now); removed != 1 {
		t.Fatalf("expected 1 purged, got %d", removed)
	}
	if _, err := store.Load(ctx, "b"); err != nil {
		t.Fatalf("live code purged: %v", err)
	}
}
