package payment

import (
	"strings"

	xerrors "AfriArt-Gallery/internal/errors"
)

// NormalizePhone 把 07XXXXXXXX、+2547XXXXXXXX、7XXXXXXXX 等写法统一为 2547XXXXXXXX，
// 01XXXXXXXX 段同样接受。
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == ' ' || r == '-' || r == '+' || r == '(' || r == ')' {
			return -1
		}
		return 'x'
	}, strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		digits = "254" + digits[1:]
	case len(digits) == 9:
		digits = "254" + digits
	default:
		return "", invalidPhone()
	}
	if strings.ContainsRune(digits, 'x') || (digits[3] != '7' && digits[3] != '1') {
		return "", invalidPhone()
	}
	return digits, nil
}

func invalidPhone() error {
	return xerrors.New(xerrors.CodeInvalidArgument, "Invalid phone number. Use the format 2547XXXXXXXX")
}
