package api

import (
	"net/http"
	"strings"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/observability/metrics"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Bio      string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

type codeRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	UserType string `json:"userType"`
}

func (s *Server) handleRegister(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		session, err := s.auth.Register(r.Context(), role, auth.Registration{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Phone:    req.Phone,
			Bio:      req.Bio,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, session.Response())
	}
}

func (s *Server) handleLogin(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		session, err := s.auth.Login(r.Context(), role, req.Email, req.Password)
		metrics.ObserveLogin(string(role), err == nil)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, session.Response())
	}
}

// handleValidateCredentials 是两步登录的第一步：凭证错误时仍返回 200 与 {valid:false}。
func (s *Server) handleValidateCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": xerrors.PublicMessage(err)})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.UserType) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": "Email, password, and userType are required"})
		return
	}
	role, err := auth.ParseRole(req.UserType)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "Invalid user type"})
		return
	}
	if err := s.auth.ValidateCredentials(r.Context(), role, req.Email, req.Password); err != nil {
		if xerrors.StatusOf(err) >= http.StatusInternalServerError {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"valid": false, "error": "Server error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": xerrors.PublicMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.UserType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.twoFA.Send(r.Context(), req.Email, role); err != nil {
		msg := xerrors.PublicMessage(err)
		if coded, ok := xerrors.From(err); ok {
			msg = coded.Message()
		}
		writeJSON(w, xerrors.StatusOf(err), map[string]any{"success": false, "error": msg})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA code sent successfully"})
}

// handleVerifyCode 对验证码本身的失败返回 200 与 {verified:false}，与前端约定一致。
func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.UserType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.twoFA.Verify(r.Context(), req.Email, req.Code, role); err != nil {
		if auth.IsCodeError(err) {
			writeJSON(w, http.StatusOK, map[string]any{"verified": false, "error": xerrors.PublicMessage(err)})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true})
}
