package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt 对密码进行哈希处理。
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// verifyPassword 校验密码。legacy 表示命中了旧库中无盐的 SHA-256 十六进制摘要，
// 调用方应在登录成功后升级哈希。
func verifyPassword(hashed, password string) (ok, legacy bool) {
	if hashed == "" {
		return false, false
	}
	if strings.HasPrefix(hashed, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil, false
	}
	if len(hashed) != sha256.Size*2 {
		return false, false
	}
	digest := sha256.Sum256([]byte(password))
	expected := hex.EncodeToString(digest[:])
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hashed)), []byte(expected)) == 1, true
}
