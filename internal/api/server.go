package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"AfriArt-Gallery/internal/auth"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/internal/payment"
	"AfriArt-Gallery/pkg/logger"
)

// Services 汇总 API 依赖的业务服务。
type Services struct {
	Auth      *auth.Service
	TwoFactor *auth.TwoFactor
	Gallery   *gallery.Service
	Payments  *payment.Service
}

// Options 控制 HTTP 服务的监听与中间件参数。
type Options struct {
	Address        string
	AllowedOrigins []string
	StaticDir      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// RateLimit 作用于登录、注册与验证码接口，按客户端 IP 计数。
	RateLimit RateLimit
	// ExposeMetrics 为 true 时在 API 端口挂载 /metrics。
	ExposeMetrics bool
}

// RateLimit 描述每个客户端 IP 每分钟允许的请求数与突发量，RequestsPerMinute 为 0 时不限流。
type RateLimit struct {
	RequestsPerMinute int
	Burst             int
}

// Server 负责暴露画廊的 REST 接口。
type Server struct {
	opts     Options
	auth     *auth.Service
	twoFA    *auth.TwoFactor
	gallery  *gallery.Service
	payments *payment.Service
	limiter  *ipLimiter
	log      *slog.Logger
	handler  http.Handler
}

// NewServer 构造 API 服务实例。
func NewServer(opts Options, services Services) (*Server, error) {
	if services.Auth == nil || services.TwoFactor == nil || services.Gallery == nil || services.Payments == nil {
		return nil, errors.New("api server requires auth, two-factor, gallery and payment services")
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	s := &Server{
		opts:     opts,
		auth:     services.Auth,
		twoFA:    services.TwoFactor,
		gallery:  services.Gallery,
		payments: services.Payments,
		limiter:  newIPLimiter(opts.RateLimit),
		log:      logger.Named("api"),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler 返回完整的路由与中间件链，便于测试直接驱动。
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("address", s.opts.Address))

	stopSweep := s.limiter.startSweeper(ctx, time.Minute)
	defer stopSweep()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
