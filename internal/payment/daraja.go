package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	xerrors "AfriArt-Gallery/internal/errors"
)

const (
	defaultDarajaBaseURL = "https://sandbox.safaricom.co.ke"
	defaultDarajaTimeout = 30 * time.Second
	// processingErrorCode 是 STK 查询在用户尚未操作时返回的错误码。
	processingErrorCode = "500.001.1001"
)

// Daraja 的时间戳使用东非时间。
var eat = time.FixedZone("EAT", 3*60*60)

// DarajaConfig 描述调用 Safaricom Daraja API 所需的信息。
type DarajaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	Timeout        time.Duration
}

// DarajaClient 通过 HTTP 调用 Daraja 的 OAuth、STK Push 与 STK 查询接口。
type DarajaClient struct {
	cfg        DarajaConfig
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewDarajaClient 根据配置创建客户端。
func NewDarajaClient(cfg DarajaConfig) (*DarajaClient, error) {
	var missing []string
	for name, value := range map[string]string{
		"consumer_key":    cfg.ConsumerKey,
		"consumer_secret": cfg.ConsumerSecret,
		"short_code":      cfg.ShortCode,
		"pass_key":        cfg.PassKey,
		"callback_url":    cfg.CallbackURL,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("Daraja 配置缺失: %s", strings.Join(missing, ", "))
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultDarajaBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDarajaTimeout
	}
	return &DarajaClient{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

// Name 实现 Provider。
func (c *DarajaClient) Name() string { return "daraja" }

// accessToken 返回缓存的 OAuth 令牌，过期前一分钟刷新。
func (c *DarajaClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("构建 Daraja OAuth 请求失败: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	body, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", providerError(fmt.Sprintf("Daraja OAuth 返回状态 %d", status), body)
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", xerrors.New(xerrors.CodePaymentFailure, "Daraja OAuth 响应缺少 access_token")
	}
	ttl := time.Duration(gjson.GetBytes(body, "expires_in").Int()) * time.Second
	if ttl <= time.Minute {
		ttl = 2 * time.Minute
	}
	c.token = token
	c.tokenExpiry = c.now().Add(ttl - time.Minute)
	return token, nil
}

// password 返回 base64(shortcode+passkey+timestamp) 与所用时间戳。
func (c *DarajaClient) password() (string, string) {
	timestamp := c.now().In(eat).Format("20060102150405")
	raw := c.cfg.ShortCode + c.cfg.PassKey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw)), timestamp
}

// STKPush 实现 Provider。金额向上取整为整数先令。
func (c *DarajaClient) STKPush(ctx context.Context, req PushRequest) (*PushResponse, error) {
	password, timestamp := c.password()
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount.Ceil().IntPart(),
		"PartyA":            req.Phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   req.Description,
	}
	body, status, err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", payload)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	if status != http.StatusOK || parsed.Get("ResponseCode").String() != "0" {
		return nil, providerError(fmt.Sprintf("Daraja STK Push 返回状态 %d", status), body)
	}
	return &PushResponse{
		CheckoutRequestID:   parsed.Get("CheckoutRequestID").String(),
		MerchantRequestID:   parsed.Get("MerchantRequestID").String(),
		ResponseCode:        parsed.Get("ResponseCode").String(),
		ResponseDescription: parsed.Get("ResponseDescription").String(),
		CustomerMessage:     parsed.Get("CustomerMessage").String(),
	}, nil
}

// Query 实现 Provider。
func (c *DarajaClient) Query(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	password, timestamp := c.password()
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}
	body, status, err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", payload)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	if parsed.Get("errorCode").String() == processingErrorCode {
		return &QueryResult{ResultDesc: parsed.Get("errorMessage").String()}, nil
	}
	code := parsed.Get("ResultCode")
	if status != http.StatusOK || !code.Exists() {
		return nil, providerError(fmt.Sprintf("Daraja STK 查询返回状态 %d", status), body)
	}
	value := int(code.Int())
	return &QueryResult{ResultCode: &value, ResultDesc: parsed.Get("ResultDesc").String()}, nil
}

func (c *DarajaClient) postJSON(ctx context.Context, path string, payload any) ([]byte, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("序列化 Daraja 请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, fmt.Errorf("构建 Daraja 请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	body, status, err := c.do(req)
	if err == nil && status == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	return body, status, err
}

func (c *DarajaClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := xerrors.CodePaymentFailure
		if errors.Is(err, context.DeadlineExceeded) {
			code = xerrors.CodeTimeout
		}
		return nil, 0, xerrors.Wrap(code, err, "请求 Daraja 失败", xerrors.WithRetryable(true))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, resp.StatusCode, xerrors.Wrap(xerrors.CodePaymentFailure, err, "读取 Daraja 响应失败")
	}
	return body, resp.StatusCode, nil
}

// providerError 取出 Daraja 的 errorMessage 作为对外提示。
func providerError(prefix string, body []byte) error {
	parsed := gjson.ParseBytes(body)
	message := parsed.Get("errorMessage").String()
	if message == "" {
		message = parsed.Get("ResponseDescription").String()
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	return xerrors.New(xerrors.CodePaymentFailure, "M-Pesa request failed: "+message,
		xerrors.WithMetadata("detail", prefix))
}
