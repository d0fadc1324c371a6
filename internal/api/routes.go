package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/observability/metrics"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(s.recoverer)
	r.Use(s.auth.Authenticate)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, xerrors.New(xerrors.CodeNotFound, "Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})

	r.Get("/healthz", s.handleHealth)
	if s.opts.ExposeMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
	if dir := strings.TrimSpace(s.opts.StaticDir); dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	// 账户与两步验证，按 IP 限流。
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Post("/register", s.handleRegister(auth.RoleUser))
		r.Post("/register-artist", s.handleRegister(auth.RoleArtist))
		r.Post("/login", s.handleLogin(auth.RoleUser))
		r.Post("/artist-login", s.handleLogin(auth.RoleArtist))
		r.Post("/admin-login", s.handleLogin(auth.RoleAdmin))
		r.Post("/validate-credentials", s.handleValidateCredentials)
		r.Post("/send-2fa-code", s.handleSendCode)
		r.Post("/verify-2fa", s.handleVerifyCode)
	})

	// 公开目录。
	r.Get("/artworks", s.handleListArtworks)
	r.Get("/artworks/{id}", s.handleGetArtwork)
	r.Get("/artworks/{id}/similar", s.handleSimilarArtworks)
	r.Get("/exhibitions", s.handleListExhibitions)
	r.Get("/exhibitions/{id}", s.handleGetExhibition)
	r.Post("/contact", s.handleSubmitMessage)
	r.Post("/mpesa/callback", s.handleCallback)

	// 需要登录的接口。细粒度的归属校验在服务层完成。
	r.Group(func(r chi.Router) {
		r.Use(s.auth.Require(auth.RequireAuthenticated))

		r.With(s.auth.Require(auth.CanCreateArtwork)).Post("/artworks", s.handleCreateArtwork)
		r.Put("/artworks/{id}", s.handleUpdateArtwork)
		r.Delete("/artworks/{id}", s.handleDeleteArtwork)

		r.Route("/artist", func(r chi.Router) {
			r.Use(s.auth.Require(auth.RequireArtist))
			r.Get("/artworks", s.handleArtistArtworks)
			r.Get("/orders", s.handleArtistOrders)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require(auth.RequireAdmin))
			r.Get("/artists", s.handleListArtists)
			r.Post("/exhibitions", s.handleCreateExhibition)
			r.Put("/exhibitions/{id}", s.handleUpdateExhibition)
			r.Delete("/exhibitions/{id}", s.handleDeleteExhibition)
			r.Get("/messages", s.handleListMessages)
			r.Put("/messages/{id}", s.handleUpdateMessage)
			r.Get("/orders", s.handleListOrders)
			r.Get("/tickets", s.handleListTickets)
		})

		r.With(s.auth.Require(auth.CanPlaceOrder)).Post("/orders/artwork", s.handlePlaceArtworkOrder)
		r.With(s.auth.Require(auth.CanPlaceOrder)).Post("/orders/exhibition", s.handleBookExhibition)
		r.Get("/orders/user/{userId}", s.handleUserOrders)
		r.Get("/tickets/generate/{bookingId}", s.handleGenerateTicket)
		r.Get("/tickets/user/{userId}", s.handleUserTickets)
		r.Get("/users/{userId}/recommendations", s.handleRecommendations)

		r.Post("/mpesa/stk-push", s.handleSTKPush)
		r.Get("/mpesa/status/{checkoutRequestId}", s.handlePaymentStatus)
	})

	return s.withCORS(r)
}

// withCORS 配置跨域访问，未配置来源时允许任意来源，与本地前端开发保持一致。
func (s *Server) withCORS(next http.Handler) http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         600,
	}).Handler(next)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
