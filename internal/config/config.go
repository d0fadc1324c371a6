package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret 在未配置 JWT_SECRET_KEY 时使用，仅适用于本地开发。
const DefaultJWTSecret = "afriart_default_secret_key"

// Config 描述了 afriartd 在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Mail      MailConfig      `yaml:"mail"`
	Payment   PaymentConfig   `yaml:"payment"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address        string        `yaml:"address" validate:"required"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	StaticDir      string        `yaml:"static_dir"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// AuthConfig 描述令牌签发、两步验证和限流参数。
type AuthConfig struct {
	JWTSecret string          `yaml:"jwt_secret" validate:"required"`
	TokenTTL  time.Duration   `yaml:"token_ttl" validate:"gt=0"`
	TwoFactor TwoFactorConfig `yaml:"two_factor"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// TwoFactorConfig 配置验证码的有效期与存储后端。
type TwoFactorConfig struct {
	CodeTTL time.Duration `yaml:"code_ttl" validate:"gt=0"`
	Store   string        `yaml:"store" validate:"oneof=memory redis"`
}

// RateLimitConfig 对登录与验证码接口进行按 IP 限流。
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
	Burst             int `yaml:"burst" validate:"gte=0"`
}

// StorageConfig 统一描述账户、目录与支付数据的存储后端。
type StorageConfig struct {
	Driver string      `yaml:"driver" validate:"oneof=memory mysql"`
	MySQL  MySQLConfig `yaml:"mysql"`
}

// MySQLConfig 描述 MySQL 连接池参数。
type MySQLConfig struct {
	DSN             string        `yaml:"dsn" validate:"required_if=Driver mysql"`
	Driver          string        `yaml:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig 描述 Redis 连接参数，验证码存储与 Redis 队列共用。
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig 描述支付结算队列。
type QueueConfig struct {
	Driver      string         `yaml:"driver" validate:"oneof=memory redis rabbitmq"`
	Workers     int            `yaml:"workers" validate:"gte=1"`
	MaxAttempts int            `yaml:"max_attempts" validate:"gte=1"`
	Redis       RedisQueue     `yaml:"redis"`
	RabbitMQ    RabbitMQConfig `yaml:"rabbitmq"`
}

// RedisQueue 描述 Redis list 队列参数。
type RedisQueue struct {
	Queue     string        `yaml:"queue"`
	BlockWait time.Duration `yaml:"block_wait"`
}

// RabbitMQConfig 描述 RabbitMQ 队列参数。
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	Prefetch   int    `yaml:"prefetch"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// MailConfig 描述邮件发送渠道。
type MailConfig struct {
	Provider        string   `yaml:"provider" validate:"oneof=log resend"`
	APIKey          string   `yaml:"api_key" validate:"required_if=Provider resend"`
	From            string   `yaml:"from"`
	AlertRecipients []string `yaml:"alert_recipients" validate:"dive,email"`
}

// PaymentConfig 描述 M-Pesa 接入参数。
type PaymentConfig struct {
	Provider      string        `yaml:"provider" validate:"oneof=sandbox daraja"`
	PendingExpiry time.Duration `yaml:"pending_expiry" validate:"gt=0"`
	// SandboxDelay 是本地 sandbox 网关把交易视为已支付前的等待时间。
	SandboxDelay time.Duration `yaml:"sandbox_delay"`
	Daraja       DarajaConfig  `yaml:"daraja"`
}

// DarajaConfig 描述 Safaricom Daraja STK Push 参数。
type DarajaConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	ShortCode      string        `yaml:"short_code"`
	PassKey        string        `yaml:"pass_key"`
	CallbackURL    string        `yaml:"callback_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LoggingConfig 映射到 pkg/logger 的配置。
type LoggingConfig struct {
	Level       string      `yaml:"level"`
	Format      string      `yaml:"format" validate:"omitempty,oneof=json text"`
	OutputPaths []string    `yaml:"output_paths"`
	Audit       AuditConfig `yaml:"audit"`
}

// AuditConfig 配置审计日志文件。
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig 控制独立的 Prometheus 端口，地址为空时挂载在 API 服务的 /metrics。
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// SchedulerConfig 描述后台定时任务，表达式为空时使用默认间隔。
type SchedulerConfig struct {
	Disabled           bool   `yaml:"disabled"`
	ExhibitionStatuses string `yaml:"exhibition_statuses"`
	ExpirePayments     string `yaml:"expire_payments"`
	PurgeCodes         string `yaml:"purge_codes"`
	RequeueSettlements string `yaml:"requeue_settlements"`
}

// Load 负责解析指定路径的 YAML 配置文件，叠加 .env 与环境变量后完成校验。
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	var cfg Config
	baseDir := "."
	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults(baseDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv 读取配置文件同目录及工作目录下的 .env，已存在的环境变量不会被覆盖。
func loadDotEnv(path string) error {
	candidates := []string{".env"}
	if path != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(path), ".env")}, candidates...)
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("加载 %s 失败: %w", abs, err)
		}
	}
	return nil
}

// applyEnv 使用环境变量覆盖文件中的配置。
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = parsed
			}
		}
	}

	str("AFRIART_ADDRESS", &c.Server.Address)
	str("AFRIART_STATIC_DIR", &c.Server.StaticDir)
	if v, ok := lookup("AFRIART_ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	str("JWT_SECRET_KEY", &c.Auth.JWTSecret)
	str("AFRIART_TWO_FACTOR_STORE", &c.Auth.TwoFactor.Store)

	str("AFRIART_STORAGE_DRIVER", &c.Storage.Driver)
	str("AFRIART_MYSQL_DSN", &c.Storage.MySQL.DSN)

	str("AFRIART_REDIS_ADDRESS", &c.Redis.Address)
	str("AFRIART_REDIS_PASSWORD", &c.Redis.Password)
	num("AFRIART_REDIS_DB", &c.Redis.DB)

	str("AFRIART_QUEUE_DRIVER", &c.Queue.Driver)
	num("AFRIART_QUEUE_WORKERS", &c.Queue.Workers)
	str("AFRIART_RABBITMQ_URL", &c.Queue.RabbitMQ.URL)

	str("AFRIART_MAIL_PROVIDER", &c.Mail.Provider)
	str("RESEND_API_KEY", &c.Mail.APIKey)
	str("SENDER_EMAIL", &c.Mail.From)

	str("AFRIART_PAYMENT_PROVIDER", &c.Payment.Provider)
	str("MPESA_BASE_URL", &c.Payment.Daraja.BaseURL)
	str("MPESA_CONSUMER_KEY", &c.Payment.Daraja.ConsumerKey)
	str("MPESA_CONSUMER_SECRET", &c.Payment.Daraja.ConsumerSecret)
	str("MPESA_SHORTCODE", &c.Payment.Daraja.ShortCode)
	str("MPESA_PASSKEY", &c.Payment.Daraja.PassKey)
	str("MPESA_CALLBACK_URL", &c.Payment.Daraja.CallbackURL)

	str("AFRIART_LOG_LEVEL", &c.Logging.Level)
	str("AFRIART_LOG_FORMAT", &c.Logging.Format)
	str("AFRIART_METRICS_ADDRESS", &c.Metrics.Address)
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = filepath.Join(baseDir, "static")
	} else if !filepath.IsAbs(c.Server.StaticDir) {
		c.Server.StaticDir = filepath.Join(baseDir, c.Server.StaticDir)
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}

	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = DefaultJWTSecret
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.TwoFactor.CodeTTL <= 0 {
		c.Auth.TwoFactor.CodeTTL = 10 * time.Minute
	}
	if c.Auth.TwoFactor.Store == "" {
		c.Auth.TwoFactor.Store = "memory"
	}
	if c.Auth.RateLimit.RequestsPerMinute == 0 {
		c.Auth.RateLimit.RequestsPerMinute = 20
	}
	if c.Auth.RateLimit.Burst == 0 {
		c.Auth.RateLimit.Burst = 5
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	c.Storage.MySQL.Driver = c.Storage.Driver

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = 5
	}
	if c.Queue.Redis.Queue == "" {
		c.Queue.Redis.Queue = "afriart:settlements"
	}
	if c.Queue.Redis.BlockWait <= 0 {
		c.Queue.Redis.BlockWait = 5 * time.Second
	}
	if c.Queue.RabbitMQ.Queue == "" {
		c.Queue.RabbitMQ.Queue = "afriart.settlements"
	}

	if c.Mail.Provider == "" {
		c.Mail.Provider = "log"
	}
	if c.Mail.From == "" {
		c.Mail.From = "AfriArt Gallery <no-reply@afriart.local>"
	}

	if c.Payment.Provider == "" {
		c.Payment.Provider = "sandbox"
	}
	if c.Payment.PendingExpiry <= 0 {
		c.Payment.PendingExpiry = 30 * time.Minute
	}
	if c.Payment.SandboxDelay <= 0 {
		c.Payment.SandboxDelay = 5 * time.Second
	}
	if c.Payment.Daraja.BaseURL == "" {
		c.Payment.Daraja.BaseURL = "https://sandbox.safaricom.co.ke"
	}
	if c.Payment.Daraja.Timeout <= 0 {
		c.Payment.Daraja.Timeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}

	if c.Scheduler.ExhibitionStatuses == "" {
		c.Scheduler.ExhibitionStatuses = "@every 15m"
	}
	if c.Scheduler.ExpirePayments == "" {
		c.Scheduler.ExpirePayments = "@every 5m"
	}
	if c.Scheduler.PurgeCodes == "" {
		c.Scheduler.PurgeCodes = "@every 10m"
	}
	if c.Scheduler.RequeueSettlements == "" {
		c.Scheduler.RequeueSettlements = "@every 5m"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置的完整性，返回的错误列出所有不合法的字段。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: 不满足 %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("配置校验失败: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Auth.TwoFactor.Store == "redis" && c.Redis.Address == "" {
		return errors.New("配置校验失败: two_factor.store=redis 需要 redis.address")
	}
	if c.Queue.Driver == "redis" && c.Redis.Address == "" {
		return errors.New("配置校验失败: queue.driver=redis 需要 redis.address")
	}
	if c.Queue.Driver == "rabbitmq" && c.Queue.RabbitMQ.URL == "" {
		return errors.New("配置校验失败: queue.driver=rabbitmq 需要 rabbitmq.url")
	}
	if c.Payment.Provider == "daraja" {
		d := c.Payment.Daraja
		if d.ConsumerKey == "" || d.ConsumerSecret == "" || d.ShortCode == "" || d.PassKey == "" || d.CallbackURL == "" {
			return errors.New("配置校验失败: daraja 需要 consumer_key、consumer_secret、short_code、pass_key 与 callback_url")
		}
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
