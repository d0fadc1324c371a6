package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// TwoFactorCode 渲染验证码邮件。
func TwoFactorCode(to, code string, ttl time.Duration) (Message, error) {
	html, err := render("two_factor.html", map[string]any{
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: "Your Verification Code",
		HTML:    html,
		Text:    fmt.Sprintf("Your 4-digit verification code is: %s. This code will expire in %d minutes.", code, int(ttl.Minutes())),
	}, nil
}

// PaymentReceipt 描述支付成功邮件的内容。
type PaymentReceipt struct {
	Name          string
	Item          string
	Amount        string
	ReceiptNumber string
	TicketCode    string
}

// PaymentConfirmation 渲染支付成功邮件。
func PaymentConfirmation(to string, receipt PaymentReceipt) (Message, error) {
	html, err := render("payment_confirmation.html", receipt)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: "Payment received - AfriArt Gallery",
		HTML:    html,
	}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("渲染邮件模板 %s 失败: %w", name, err)
	}
	return buf.String(), nil
}
