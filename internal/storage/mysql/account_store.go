package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
)

const errDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var mysqlErr *gomysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}

func storageError(err error, message string) error {
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, message, xerrors.WithRetryable(true))
}

// accountTable 描述某个角色对应的账户表。admins 表没有 phone、bio 与头像列。
type accountTable struct {
	name    string
	columns string
}

var accountTables = map[auth.Role]accountTable{
	auth.RoleUser:   {name: "users", columns: "id, name, email, phone, '' AS bio, '' AS profile_image_url, password, created_at"},
	auth.RoleArtist: {name: "artists", columns: "id, name, email, phone, COALESCE(bio, '') AS bio, profile_image_url, password, created_at"},
	auth.RoleAdmin:  {name: "admins", columns: "id, name, email, '' AS phone, '' AS bio, '' AS profile_image_url, password, created_at"},
}

func tableFor(role auth.Role) (accountTable, error) {
	table, ok := accountTables[role]
	if !ok {
		return accountTable{}, xerrors.New(xerrors.CodeInvalidArgument, "Invalid user type")
	}
	return table, nil
}

// AccountStore 实现 auth.AccountStore 与 gallery.AccountDirectory。
type AccountStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAccountStore 基于已建立的连接池创建 AccountStore。
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db, now: time.Now}
}

// CreateAccount 写入账户，邮箱重复时返回 auth.ErrEmailTaken。
func (s *AccountStore) CreateAccount(ctx context.Context, account *auth.Account) error {
	table, err := tableFor(account.Role)
	if err != nil {
		return err
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now().UTC()
	}
	email := strings.TrimSpace(account.Email)

	var res sql.Result
	switch account.Role {
	case auth.RoleUser:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO users (name, email, password, phone, created_at) VALUES (?, ?, ?, ?, ?)`,
			account.Name, email, account.PasswordHash, account.Phone, account.CreatedAt)
	case auth.RoleArtist:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO artists (name, email, password, phone, bio, profile_image_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			account.Name, email, account.PasswordHash, account.Phone, account.Bio, account.ProfileImageURL, account.CreatedAt)
	default:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO admins (name, email, password, created_at) VALUES (?, ?, ?, ?)`,
			account.Name, email, account.PasswordHash, account.CreatedAt)
	}
	if err != nil {
		if isDuplicate(err) {
			return auth.ErrEmailTaken
		}
		return storageError(err, fmt.Sprintf("写入 %s 失败", table.name))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageError(err, "读取账户 id 失败")
	}
	account.ID = id
	return nil
}

// FindAccountByEmail implements auth.AccountStore.
func (s *AccountStore) FindAccountByEmail(ctx context.Context, role auth.Role, email string) (*auth.Account, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = ?`, table.columns, table.name)
	return scanAccount(role, s.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

// FindAccountByID implements auth.AccountStore.
func (s *AccountStore) FindAccountByID(ctx context.Context, role auth.Role, id int64) (*auth.Account, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, table.columns, table.name)
	return scanAccount(role, s.db.QueryRowContext(ctx, query, id))
}

// UpdatePasswordHash implements auth.AccountStore.
func (s *AccountStore) UpdatePasswordHash(ctx context.Context, role auth.Role, id int64, hash string) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET password = ? WHERE id = ?`, table.name), hash, id)
	if err != nil {
		return storageError(err, "更新密码失败")
	}
	return expectRow(res, auth.ErrAccountNotFound)
}

// ListAccounts 按 id 升序返回某个角色的全部账户。
func (s *AccountStore) ListAccounts(ctx context.Context, role auth.Role) ([]auth.Account, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, table.columns, table.name))
	if err != nil {
		return nil, storageError(err, "查询账户失败")
	}
	defer rows.Close()

	out := make([]auth.Account, 0)
	for rows.Next() {
		account, err := scanAccount(role, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历账户失败")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(role auth.Role, row rowScanner) (*auth.Account, error) {
	account := auth.Account{Role: role}
	err := row.Scan(&account.ID, &account.Name, &account.Email, &account.Phone, &account.Bio,
		&account.ProfileImageURL, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, storageError(err, "读取账户失败")
	}
	return &account, nil
}

// expectRow 在 UPDATE/DELETE 未匹配任何行时返回 notFound。
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageError(err, "读取影响行数失败")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
