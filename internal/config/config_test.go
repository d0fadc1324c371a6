package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "afriart.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  address: \":9000\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("unexpected address %q", cfg.Server.Address)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.TwoFactor.CodeTTL != 10*time.Minute {
		t.Fatalf("unexpected code ttl %s", cfg.Auth.TwoFactor.CodeTTL)
	}
	if cfg.Storage.Driver != "memory" || cfg.Queue.Driver != "memory" || cfg.Payment.Provider != "sandbox" {
		t.Fatalf("unexpected drivers: %+v", cfg)
	}
	if cfg.Server.StaticDir != filepath.Join(filepath.Dir(path), "static") {
		t.Fatalf("static dir should be resolved against the config dir, got %q", cfg.Server.StaticDir)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, "auth:\n  token_ttl: 2h\n  two_factor:\n    code_ttl: 90s\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour || cfg.Auth.TwoFactor.CodeTTL != 90*time.Second {
		t.Fatalf("durations not parsed: %+v", cfg.Auth)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: from-file\n")
	t.Setenv("JWT_SECRET_KEY", "from-env")
	t.Setenv("AFRIART_ALLOWED_ORIGINS", "http://localhost:5173, https://afriart.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://afriart.example" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
}

func TestDotEnvNextToConfigIsLoaded(t *testing.T) {
	path := writeConfig(t, "")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("AFRIART_TEST_DOTENV_SECRET=dotenv\n"), 0o600); err != nil {
		t.Fatalf("写入 .env 失败: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("AFRIART_TEST_DOTENV_SECRET") })

	if _, err := Load(path); err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if got := os.Getenv("AFRIART_TEST_DOTENV_SECRET"); got != "dotenv" {
		t.Fatalf(".env not loaded, got %q", got)
	}
}

func TestValidateRejectsInvalidDrivers(t *testing.T) {
	cases := map[string]string{
		"storage":  "storage:\n  driver: postgres\n",
		"mysql":    "storage:\n  driver: mysql\n",
		"queue":    "queue:\n  driver: redis\n",
		"daraja":   "payment:\n  provider: daraja\n",
		"resend":   "mail:\n  provider: resend\n",
		"audit":    "logging:\n  audit:\n    enabled: true\n",
		"twofa":    "auth:\n  two_factor:\n    store: redis\n",
		"rabbitmq": "queue:\n  driver: rabbitmq\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if err == nil || !strings.Contains(err.Error(), "配置校验失败") {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadWithoutFileUsesEnvironment(t *testing.T) {
	t.Setenv("AFRIART_ADDRESS", ":7000")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Fatalf("unexpected address %q", cfg.Server.Address)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Fatalf("secret should fall back to the default")
	}
}
