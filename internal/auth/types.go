package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
)

// Role identifies which account table a subject belongs to.
type Role string

const (
	RoleUser   Role = "user"
	RoleArtist Role = "artist"
	RoleAdmin  Role = "admin"
)

// ParseRole converts the userType strings used by the web client.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleArtist:
		return RoleArtist, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", xerrors.New(xerrors.CodeInvalidArgument, "Invalid user type")
	}
}

// IDField is the JSON key used for the account id in auth responses.
func (r Role) IDField() string {
	return string(r) + "_id"
}

const CodeInvalidCredentials xerrors.Code = "INVALID_CREDENTIALS"

func init() {
	xerrors.Register(CodeInvalidCredentials, xerrors.Attributes{
		Message:  "Invalid credentials",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.RegisterStatus(CodeInvalidCredentials, http.StatusUnauthorized)
}

// Common errors returned by the authentication subsystem.
var (
	ErrMissingToken            = xerrors.New(xerrors.CodeUnauthenticated, "Authentication required")
	ErrInvalidCredentials      = xerrors.New(CodeInvalidCredentials, "Invalid credentials")
	ErrInvalidAdminCredentials = xerrors.New(CodeInvalidCredentials, "Invalid admin credentials")
	ErrEmailTaken              = xerrors.New(xerrors.CodeConflict, "Email already registered")
	ErrAccountNotFound         = xerrors.New(xerrors.CodeNotFound, "Account not found")
)

// PermissionDenied builds a 403 error carrying the message shown to clients.
func PermissionDenied(message string) error {
	if message == "" {
		message = "Unauthorized access: Not authorized"
	}
	return xerrors.New(xerrors.CodePermissionDenied, message)
}

// Account is a persisted user, artist or admin with credentials.
type Account struct {
	ID              int64
	Role            Role
	Name            string
	Email           string
	Phone           string
	Bio             string
	ProfileImageURL string
	PasswordHash    string
	CreatedAt       time.Time
}

// Subject captures the verified token claims and is passed to handlers via
// context.
type Subject struct {
	ID   int64
	Name string
	Role Role
}

// IsAdmin reports whether the subject holds admin privileges.
func (s *Subject) IsAdmin() bool { return s != nil && s.Role == RoleAdmin }

// IsArtist reports whether the subject is an artist.
func (s *Subject) IsArtist() bool { return s != nil && s.Role == RoleArtist }

// IsUser reports whether the subject is a regular customer.
func (s *Subject) IsUser() bool { return s != nil && s.Role == RoleUser }

// IDString renders the id the same way it travels in the token's sub claim.
func (s *Subject) IDString() string {
	if s == nil {
		return ""
	}
	return strconv.FormatInt(s.ID, 10)
}

// String implements fmt.Stringer for log attributes.
func (s *Subject) String() string {
	if s == nil {
		return "anonymous"
	}
	return fmt.Sprintf("%s:%d", s.Role, s.ID)
}

// AccountStore abstracts the per-role account tables. Implementations must
// be safe for concurrent use and must return ErrEmailTaken on duplicate
// emails within a role and ErrAccountNotFound for missing rows.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	FindAccountByEmail(ctx context.Context, role Role, email string) (*Account, error)
	FindAccountByID(ctx context.Context, role Role, id int64) (*Account, error)
	UpdatePasswordHash(ctx context.Context, role Role, id int64, hash string) error
}

// Registration is the payload accepted by the register endpoints.
type Registration struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Bio      string
}

// Session is returned after a successful register or login.
type Session struct {
	Token     string
	AccountID int64
	Name      string
	Role      Role
}

// Response renders the session using the role specific id key
// (user_id, artist_id or admin_id).
func (s *Session) Response() map[string]any {
	return map[string]any{
		"token":          s.Token,
		s.Role.IDField(): s.AccountID,
		"name":           s.Name,
	}
}

// Config configures the authentication service.
type Config struct {
	Secret   string
	TokenTTL time.Duration
}
