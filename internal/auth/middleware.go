package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
)

// Check is a policy applied to the authenticated subject of a request.
type Check func(subject *Subject) error

// Authenticate 返回一个 HTTP 中间件：携带授权头的请求会被校验并把主体写入上下文，
// 没有授权头的请求以匿名身份继续。授权头无效时同样以匿名身份继续，
// 校验错误留在上下文里，由 Require 在受保护路由上返回 401。
func (s *Service) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := s.AuthenticateRequest(r.Context(), header)
		if err != nil {
			next.ServeHTTP(w, r.WithContext(withAuthError(r.Context(), err)))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

// Require 返回一个中间件，按给定策略校验上下文中的主体。
// 未认证返回 401，权限不足返回 403。
func (s *Service) Require(check Check) func(http.Handler) http.Handler {
	if check == nil {
		check = RequireAuthenticated
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := SubjectFromContext(r.Context())
			if err := check(subject); err != nil {
				if authErr := authErrorFromContext(r.Context()); subject == nil && authErr != nil {
					err = authErr
				}
				s.deny(w, r, subject, err)
				return
			}
			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r)
			s.audit.Info("api_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", aw.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("subject", subject.String()),
			)
		})
	}
}

func (s *Service) deny(w http.ResponseWriter, r *http.Request, subject *Subject, err error) {
	status := xerrors.StatusOf(err)
	if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
		status = http.StatusUnauthorized
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": xerrors.PublicMessage(err)})
	s.audit.Warn("access_denied",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("subject", subject.String()),
	)
}

// auditWriter 包装 http.ResponseWriter，用于捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type ctxKey int

const (
	subjectCtxKey ctxKey = iota
	authErrCtxKey
)

// WithSubject 把已认证的主体挂到 ctx 上，nil 时原样返回。
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	return context.WithValue(ctx, subjectCtxKey, subject)
}

// SubjectFromContext 返回请求的主体，匿名请求为 nil。
func SubjectFromContext(ctx context.Context) *Subject {
	subject, _ := ctx.Value(subjectCtxKey).(*Subject)
	return subject
}

func withAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrCtxKey, err)
}

// authErrorFromContext 返回授权头校验失败的原因，授权头有效或缺失时为 nil。
func authErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(authErrCtxKey).(error)
	return err
}
