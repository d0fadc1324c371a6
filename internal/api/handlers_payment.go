package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/payment"
)

func (s *Server) handleSTKPush(w http.ResponseWriter, r *http.Request) {
	var req payment.InitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.payments.Initiate(r.Context(), auth.SubjectFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.payments.Status(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "checkoutRequestId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleCallback 接收网关回调。网关只关心 ResultCode，处理失败时返回非 0 以便重试。
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ResultCode": 1, "ResultDesc": "Unreadable payload"})
		return
	}
	if err := s.payments.HandleCallback(r.Context(), body); err != nil {
		writeJSON(w, xerrors.StatusOf(err), map[string]any{"ResultCode": 1, "ResultDesc": xerrors.PublicMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"})
}
