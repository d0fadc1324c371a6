package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"AfriArt-Gallery/internal/auth"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/internal/mail"
	"AfriArt-Gallery/internal/payment"
)

type testEnv struct {
	server   *httptest.Server
	api      *Server
	auth     *auth.Service
	codes    *auth.MemoryCodeStore
	mailer   *mail.LogSender
	accounts *auth.MemoryStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts: auth.NewMemoryStore(),
		codes:    auth.NewMemoryCodeStore(),
		mailer:   mail.NewLogSender(),
	}
	authSvc, err := auth.NewService(auth.Config{Secret: "api-test-secret", TokenTTL: time.Hour}, env.accounts)
	require.NoError(t, err)
	env.auth = authSvc

	gallerySvc, err := gallery.NewService(gallery.NewMemoryStore(), env.accounts)
	require.NoError(t, err)

	payments, err := payment.NewService(payment.NewMemoryStore(), payment.NewSandboxProvider(0), gallerySvc,
		payment.WithMailer(env.mailer))
	require.NoError(t, err)

	env.api, err = NewServer(opts, Services{
		Auth:      authSvc,
		TwoFactor: auth.NewTwoFactor(env.codes, env.mailer, 10*time.Minute),
		Gallery:   gallerySvc,
		Payments:  payments,
	})
	require.NoError(t, err)

	env.server = httptest.NewServer(env.api.Handler())
	t.Cleanup(env.server.Close)
	return env
}

// call 发送请求并返回状态码与原始响应体。
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// callJSON 与 call 相同，但把响应体解码为对象。
func (e *testEnv) callJSON(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := e.call(t, method, path, token, body)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return status, out
}

func (e *testEnv) register(t *testing.T, path, name, email string) string {
	t.Helper()
	status, body := e.callJSON(t, http.MethodPost, path, "", map[string]string{
		"name": name, "email": email, "password": "s3cret-pass", "phone": "0712345678",
	})
	require.Equal(t, http.StatusCreated, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, err := e.auth.CreateAdmin(context.Background(), "Root", "root@afriart.test", "admin-pass")
	require.NoError(t, err)
	status, body := e.callJSON(t, http.MethodPost, "/admin-login", "", map[string]string{
		"email": "root@afriart.test", "password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}
