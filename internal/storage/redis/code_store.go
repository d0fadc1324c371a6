package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
)

const defaultCodePrefix = "afriart:2fa:"

// expiryGrace keeps a code readable for a while after it expires so that
// Verify can tell "expired" apart from "never sent".
const expiryGrace = 10 * time.Minute

// CodeStore implements auth.CodeStore on top of Redis string keys.
type CodeStore struct {
	client goredis.Cmdable
	prefix string
	now    func() time.Time
}

// NewCodeStore 创建验证码存储，prefix 为空时使用默认前缀。
func NewCodeStore(client goredis.Cmdable, prefix string) *CodeStore {
	if prefix == "" {
		prefix = defaultCodePrefix
	}
	return &CodeStore{client: client, prefix: prefix, now: time.Now}
}

func (s *CodeStore) key(key string) string {
	return s.prefix + key
}

// ttlFor returns how long the record is kept in Redis.
func (s *CodeStore) ttlFor(code auth.StoredCode) time.Duration {
	ttl := code.ExpiresAt.Sub(s.now()) + expiryGrace
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Save implements auth.CodeStore.
func (s *CodeStore) Save(ctx context.Context, key string, code auth.StoredCode) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化验证码失败")
	}
	if err := s.client.Set(ctx, s.key(key), payload, s.ttlFor(code)).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入验证码失败")
	}
	return nil
}

// Load implements auth.CodeStore.
func (s *CodeStore) Load(ctx context.Context, key string) (*auth.StoredCode, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, auth.ErrCodeNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取验证码失败")
	}
	return decodeCode(raw)
}

func decodeCode(raw []byte) (*auth.StoredCode, error) {
	var code auth.StoredCode
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析验证码失败")
	}
	return &code, nil
}

// consumeScript 返回记录，并在验证码一致时删除，两步在 Redis 内原子执行。
var consumeScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return false
end
local ok, record = pcall(cjson.decode, raw)
if ok and record.code == ARGV[1] then
  redis.call('DEL', KEYS[1])
end
return raw
`)

// Consume implements auth.CodeStore.
func (s *CodeStore) Consume(ctx context.Context, key, code string) (*auth.StoredCode, error) {
	raw, err := consumeScript.Run(ctx, s.client, []string{s.key(key)}, code).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, auth.ErrCodeNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "核销验证码失败")
	}
	return decodeCode([]byte(raw))
}

// Delete implements auth.CodeStore.
func (s *CodeStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "删除验证码失败")
	}
	return nil
}
