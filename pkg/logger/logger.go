// Package logger 管理 afriartd 的全局 slog 实例：应用日志写到标准输出或文件，
// 审计日志（登录、支付、管理员操作）可单独写入按大小滚动的 JSON 文件。
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 对应配置文件中的 logging 段。
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig 描述审计日志文件及其滚动策略，大小单位为 MB。
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

const redacted = "[REDACTED]"

// 这些字段即便误传进日志也只输出占位符。
var sensitiveKeys = map[string]bool{
	"password":        true,
	"phone":           true,
	"phone_number":    true,
	"passkey":         true,
	"consumer_secret": true,
	"token":           true,
}

var (
	app   atomic.Pointer[slog.Logger]
	audit atomic.Pointer[slog.Logger]

	sinksMu sync.Mutex
	sinks   []io.Closer
)

// Init 按配置重建全局日志器。可以重复调用，旧的文件句柄会被关闭。
func Init(cfg Config) error {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   true,
		ReplaceAttr: redact,
	}

	var opened []io.Closer
	out, err := openOutputs(cfg.OutputPaths, &opened)
	if err != nil {
		closeAll(opened)
		return err
	}
	base := slog.New(newHandler(cfg.Format, out, opts))

	auditLog := base
	if cfg.Audit.Enabled {
		w, err := openAudit(cfg.Audit)
		if err != nil {
			closeAll(opened)
			return err
		}
		opened = append(opened, w)
		auditLog = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{ReplaceAttr: redact})).
			With(slog.String("stream", "audit"))
	}

	sinksMu.Lock()
	previous := sinks
	sinks = opened
	sinksMu.Unlock()

	app.Store(base)
	audit.Store(auditLog)
	closeAll(previous)
	return nil
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// openOutputs 支持 stdout、stderr 与文件路径，未配置时写标准输出。
func openOutputs(paths []string, opened *[]io.Closer) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(paths))
	for _, p := range paths {
		switch strings.ToLower(p) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", p, err)
			}
			*opened = append(*opened, f)
			writers = append(writers, f)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openAudit(cfg AuditConfig) (*lumberjack.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("logging.audit.path is required when audit logging is enabled")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    positiveOr(cfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.MaxBackups, 7),
		MaxAge:     positiveOr(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func closeAll(closers []io.Closer) error {
	var err error
	for _, c := range closers {
		err = errors.Join(err, c.Close())
	}
	return err
}

// L 返回应用日志器；未调用 Init 时使用默认配置。
func L() *slog.Logger {
	if l := app.Load(); l != nil {
		return l
	}
	if err := Init(Config{}); err != nil {
		return slog.Default()
	}
	return app.Load()
}

// Audit 返回审计日志器，未单独启用时与应用日志共用输出。
func Audit() *slog.Logger {
	if l := audit.Load(); l != nil {
		return l
	}
	return L()
}

// Named 返回带 component 字段的子日志器。
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// Sync 关闭 Init 打开的日志文件，进程退出前调用。
func Sync() error {
	sinksMu.Lock()
	opened := sinks
	sinks = nil
	sinksMu.Unlock()
	return closeAll(opened)
}

// Replace 临时替换全局日志器，返回的函数用于恢复，测试中用来捕获输出。
func Replace(l *slog.Logger) func() {
	prevApp, prevAudit := app.Swap(l), audit.Swap(l)
	return func() {
		app.Store(prevApp)
		audit.Store(prevAudit)
	}
}
