package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	xerrors "AfriArt-Gallery/internal/errors"
)

// Claims is the JWT payload shared with the web client.
type Claims struct {
	Name     string `json:"name"`
	IsAdmin  bool   `json:"is_admin"`
	IsArtist bool   `json:"is_artist"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager 构造令牌管理器。
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret must be configured")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue 为主体签发访问令牌。
func (m *TokenManager) Issue(subject *Subject) (string, error) {
	if subject == nil {
		return "", errors.New("subject required")
	}
	now := m.now()
	claims := Claims{
		Name:     subject.Name,
		IsAdmin:  subject.Role == RoleAdmin,
		IsArtist: subject.Role == RoleArtist,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subject.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeUnknown, err, "sign token")
	}
	return token, nil
}

// Verify 校验令牌签名、算法与有效期，并还原主体信息。
func (m *TokenManager) Verify(raw string) (*Subject, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, xerrors.New(xerrors.CodeUnauthenticated, "Token expired")
		}
		return nil, xerrors.New(xerrors.CodeUnauthenticated, "Invalid token: "+err.Error())
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, xerrors.New(xerrors.CodeUnauthenticated, "Invalid token: malformed subject")
	}
	role := RoleUser
	switch {
	case claims.IsAdmin:
		role = RoleAdmin
	case claims.IsArtist:
		role = RoleArtist
	}
	return &Subject{ID: id, Name: claims.Name, Role: role}, nil
}

// ExtractToken pulls the token out of an Authorization header. Besides the
// standard "Bearer <token>" form, any "<scheme> <token>" value is accepted.
func ExtractToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if strings.Contains(header, " ") {
		parts := strings.Split(header, " ")
		return strings.TrimSpace(parts[1])
	}
	return ""
}
