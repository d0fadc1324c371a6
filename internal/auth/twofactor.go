package auth

import (
	"context"
	"crypto/rand"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/mail"
	"AfriArt-Gallery/pkg/logger"
)

const (
	CodeVerificationMissing  xerrors.Code = "VERIFICATION_CODE_MISSING"
	CodeVerificationExpired  xerrors.Code = "VERIFICATION_CODE_EXPIRED"
	CodeVerificationMismatch xerrors.Code = "VERIFICATION_CODE_MISMATCH"
)

func init() {
	for _, err := range []*xerrors.Error{ErrCodeNotFound, ErrCodeExpired, ErrCodeMismatch} {
		xerrors.Register(err.Code(), xerrors.Attributes{Message: err.Message(), Severity: xerrors.SeverityInfo})
		xerrors.RegisterStatus(err.Code(), http.StatusBadRequest)
	}
}

// Verification code errors. Their messages are shown to the client as-is.
var (
	ErrCodeNotFound = xerrors.New(CodeVerificationMissing, "No verification code found")
	ErrCodeExpired  = xerrors.New(CodeVerificationExpired, "Verification code has expired")
	ErrCodeMismatch = xerrors.New(CodeVerificationMismatch, "Invalid verification code")
)

// StoredCode is a pending verification code.
type StoredCode struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeStore keeps pending verification codes. Load and Consume return
// ErrCodeNotFound when nothing is stored under key.
//
// Consume returns the stored record and, in the same atomic step, deletes it
// when its code equals code. A mismatching code leaves the record in place.
type CodeStore interface {
	Save(ctx context.Context, key string, code StoredCode) error
	Load(ctx context.Context, key string) (*StoredCode, error)
	Consume(ctx context.Context, key, code string) (*StoredCode, error)
	Delete(ctx context.Context, key string) error
}

// TwoFactor 负责生成、发送与校验 4 位邮箱验证码。
type TwoFactor struct {
	store    CodeStore
	sender   mail.Sender
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewTwoFactor 构造两步验证服务。
func NewTwoFactor(store CodeStore, sender mail.Sender, ttl time.Duration) *TwoFactor {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TwoFactor{store: store, sender: sender, ttl: ttl, now: time.Now, generate: generateCode}
}

// CodeKey 返回验证码的存储键，同一邮箱在不同角色下互不影响。
func CodeKey(email string, role Role) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(strings.TrimSpace(email)), role)
}

// Send 生成新验证码并通过邮件发送，旧验证码被覆盖。
func (t *TwoFactor) Send(ctx context.Context, email string, role Role) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "Email is required")
	}
	code, err := t.generate()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeUnknown, err, "generate verification code")
	}
	now := t.now()
	if err := t.store.Save(ctx, CodeKey(email, role), StoredCode{
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.ttl),
	}); err != nil {
		return err
	}
	msg, err := mail.TwoFactorCode(email, code, t.ttl)
	if err != nil {
		return err
	}
	if err := t.sender.Send(ctx, msg); err != nil {
		logger.L().Error("验证码邮件发送失败", slog.String("role", string(role)), slog.Any("error", err))
		return xerrors.Wrap(xerrors.CodeUnknown, err, "Failed to send email: "+err.Error(), xerrors.WithRetryable(true))
	}
	return nil
}

// Verify 校验验证码。验证码只能使用一次，过期的验证码会被删除。
func (t *TwoFactor) Verify(ctx context.Context, email, code string, role Role) error {
	key := CodeKey(email, role)
	code = strings.TrimSpace(code)
	stored, err := t.store.Consume(ctx, key, code)
	if err != nil {
		return err
	}
	if t.now().After(stored.ExpiresAt) {
		if stored.Code != code {
			_ = t.store.Delete(ctx, key)
		}
		return ErrCodeExpired
	}
	if stored.Code != code {
		return ErrCodeMismatch
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}

// MemoryCodeStore keeps codes in process memory. Expired entries stay until
// Purge removes them so that Verify can still report the expiry.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]StoredCode
}

// NewMemoryCodeStore creates an empty store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]StoredCode)}
}

// Save implements CodeStore.
func (s *MemoryCodeStore) Save(_ context.Context, key string, code StoredCode) error {
	s.mu.Lock()
	s.codes[key] = code
	s.mu.Unlock()
	return nil
}

// Load implements CodeStore.
func (s *MemoryCodeStore) Load(_ context.Context, key string) (*StoredCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[key]
	if !ok {
		return nil, ErrCodeNotFound
	}
	return &code, nil
}

// Consume implements CodeStore.
func (s *MemoryCodeStore) Consume(_ context.Context, key, code string) (*StoredCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[key]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if stored.Code == code {
		delete(s.codes, key)
	}
	return &stored, nil
}

// Delete implements CodeStore.
func (s *MemoryCodeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.codes, key)
	s.mu.Unlock()
	return nil
}

// Purge drops codes that expired before now and reports how many were removed.
func (s *MemoryCodeStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, code := range s.codes {
		if now.After(code.ExpiresAt) {
			delete(s.codes, key)
			removed++
		}
	}
	return removed
}

// IsCodeError reports whether err is one of the verification code outcomes
// that should be returned to the client as {verified:false}.
func IsCodeError(err error) bool {
	return stdErrors.Is(err, ErrCodeNotFound) || stdErrors.Is(err, ErrCodeExpired) || stdErrors.Is(err, ErrCodeMismatch)
}
