package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"AfriArt-Gallery/internal/auth"
)

func TestCodeStoreTTLIncludesGrace(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewCodeStore(nil, "")
	store.now = func() time.Time { return now }

	ttl := store.ttlFor(auth.StoredCode{ExpiresAt: now.Add(10 * time.Minute)})
	if ttl != 10*time.Minute+expiryGrace {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	if ttl := store.ttlFor(auth.StoredCode{ExpiresAt: now.Add(-time.Hour)}); ttl != time.Second {
		t.Fatalf("ttl must stay positive, got %s", ttl)
	}
	if store.key("a@b.c_user") != "afriart:2fa:a@b.c_user" {
		t.Fatalf("unexpected key %q", store.key("a@b.c_user"))
	}
}

// TestCodeStoreAgainstRedis runs only when a Redis instance is provided.
func TestCodeStoreAgainstRedis(t *testing.T) {
	addr := os.Getenv("AFRIART_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AFRIART_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, Config{Address: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	store := NewCodeStore(client, "afriart:test:2fa:")
	key := auth.CodeKey("redis@example.com", auth.RoleUser)
	code := auth.StoredCode{Code: "1234", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute)}
	if err := store.Save(ctx, key, code); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx, key)
	if err != nil || loaded.Code != "1234" {
		t.Fatalf("load: %+v %v", loaded, err)
	}
	if stored, err := store.Consume(ctx, key, "0000"); err != nil || stored.Code != "1234" {
		t.Fatalf("consume mismatch: %+v %v", stored, err)
	}
	if _, err := store.Consume(ctx, key, "1234"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := store.Consume(ctx, key, "1234"); !errors.Is(err, auth.ErrCodeNotFound) {
		t.Fatalf("code must be consumed once, got %v", err)
	}

	if err := store.Save(ctx, key, code); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, key); !errors.Is(err, auth.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
