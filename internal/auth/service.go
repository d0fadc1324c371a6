package auth

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"net/mail"
	"strings"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/pkg/logger"
)

// Service 负责账户注册、登录与请求令牌校验。
type Service struct {
	store  AccountStore
	tokens *TokenManager
	audit  *slog.Logger
}

// NewService 构造身份认证服务实例。
func NewService(cfg Config, store AccountStore) (*Service, error) {
	if store == nil {
		return nil, stdErrors.New("auth service requires an account store")
	}
	tokens, err := NewTokenManager(cfg.Secret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &Service{store: store, tokens: tokens, audit: logger.Audit()}, nil
}

// Tokens 返回底层令牌管理器。
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register 为普通用户或艺术家创建账户并直接签发令牌。
// 管理员只能通过 CreateAdmin 创建。
func (s *Service) Register(ctx context.Context, role Role, reg Registration) (*Session, error) {
	if role != RoleUser && role != RoleArtist {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Invalid user type")
	}
	account, err := s.createAccount(ctx, role, reg)
	if err != nil {
		return nil, err
	}
	s.audit.Info("account_registered",
		slog.String("role", string(role)),
		slog.Int64("account_id", account.ID),
	)
	return s.issueSession(account)
}

// CreateAdmin 创建管理员账户，供命令行初始化使用。
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (*Account, error) {
	account, err := s.createAccount(ctx, RoleAdmin, Registration{Name: name, Email: email, Password: password})
	if err != nil {
		if stdErrors.Is(err, ErrEmailTaken) {
			return nil, xerrors.New(xerrors.CodeConflict, "Admin email already exists")
		}
		return nil, err
	}
	s.audit.Info("admin_created", slog.Int64("account_id", account.ID))
	return account, nil
}

func (s *Service) createAccount(ctx context.Context, role Role, reg Registration) (*Account, error) {
	name := strings.TrimSpace(reg.Name)
	email := normaliseEmail(reg.Email)
	if name == "" || email == "" || reg.Password == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Invalid email address")
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "Invalid password")
	}
	account := &Account{
		Role:         role,
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(reg.Phone),
		Bio:          strings.TrimSpace(reg.Bio),
		PasswordHash: hash,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login 校验指定角色的邮箱与密码并签发令牌。
func (s *Service) Login(ctx context.Context, role Role, email, password string) (*Session, error) {
	account, err := s.checkCredentials(ctx, role, email, password)
	if err != nil {
		s.audit.Warn("login_failed",
			slog.String("role", string(role)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.audit.Info("login_succeeded",
		slog.String("role", string(role)),
		slog.Int64("account_id", account.ID),
	)
	return s.issueSession(account)
}

// ValidateCredentials 只校验凭证，不签发令牌，供两步验证的第一步使用。
func (s *Service) ValidateCredentials(ctx context.Context, role Role, email, password string) error {
	_, err := s.checkCredentials(ctx, role, email, password)
	return err
}

func (s *Service) checkCredentials(ctx context.Context, role Role, email, password string) (*Account, error) {
	invalid := ErrInvalidCredentials
	if role == RoleAdmin {
		invalid = ErrInvalidAdminCredentials
	}
	email = normaliseEmail(email)
	if email == "" || password == "" {
		return nil, invalid
	}
	account, err := s.store.FindAccountByEmail(ctx, role, email)
	if err != nil {
		if stdErrors.Is(err, ErrAccountNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	ok, legacy := verifyPassword(account.PasswordHash, password)
	if !ok {
		return nil, invalid
	}
	if legacy {
		s.upgradeHash(ctx, account, password)
	}
	return account, nil
}

// upgradeHash 将旧的 SHA-256 摘要替换为 bcrypt，失败不影响本次登录。
func (s *Service) upgradeHash(ctx context.Context, account *Account, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, account.Role, account.ID, hash)
	}
	if err != nil {
		logger.L().Warn("升级密码哈希失败",
			slog.String("role", string(account.Role)),
			slog.Int64("account_id", account.ID),
			slog.Any("error", err),
		)
		return
	}
	account.PasswordHash = hash
}

func (s *Service) issueSession(account *Account) (*Session, error) {
	token, err := s.tokens.Issue(&Subject{ID: account.ID, Name: account.Name, Role: account.Role})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, AccountID: account.ID, Name: account.Name, Role: account.Role}, nil
}

// AuthenticateRequest 验证传入请求的授权头，并返回相应的主体信息。
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	token := ExtractToken(authorization)
	if token == "" {
		return nil, ErrMissingToken
	}
	return s.tokens.Verify(token)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
