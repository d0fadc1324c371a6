package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/pkg/logger"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = xerrors.New(xerrors.CodeInvalidArgument, "No JSON data provided")

// writeJSON 以 JSON 格式写出响应体。
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Warn("写出响应失败", slog.Any("error", err))
	}
}

// writeError 把错误映射为 {"error": message}。5xx 错误只返回通用描述并记录日志。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := xerrors.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("请求处理失败",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("code", string(xerrors.CodeOf(err))),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, map[string]string{"error": xerrors.PublicMessage(err)})
}

// decodeJSON 读取请求体并解码到 dst，拒绝空请求体。
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var coded *xerrors.Error
		if errors.As(err, &coded) {
			return coded
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return xerrors.New(xerrors.CodeInvalidArgument, "Request body too large")
		}
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "Invalid JSON payload")
	}
	return nil
}

// pathID 解析路由中的数字 id。
func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, "Invalid "+name+": "+raw)
	}
	return id, nil
}

// queryLimit 读取可选的 limit 查询参数，非法值回退为 0，由服务层取默认值。
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func message(text string) map[string]string {
	return map[string]string{"message": text}
}
