package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

// checkAndIncrementScript атомарно проверяет потолок и увеличивает счетчик.
// TTL ставится только на первом инкременте: окно фиксированное и сбрасывается,
// когда ключ истекает.
var checkAndIncrementScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// VerificationStore реализует repository.VerificationStore, repository.CounterStore
// и repository.SessionRevocationStore поверх Redis
type VerificationStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

var (
	_ repository.VerificationStore      = (*VerificationStore)(nil)
	_ repository.CounterStore           = (*VerificationStore)(nil)
	_ repository.SessionRevocationStore = (*VerificationStore)(nil)
)

// NewVerificationStore создает хранилище; timeout ограничивает каждую операцию
func NewVerificationStore(client redis.UniversalClient, timeout time.Duration) (*VerificationStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for VerificationStore")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &VerificationStore{client: client, timeout: timeout}, nil
}

func (s *VerificationStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", apperrors.ErrStoreUnavailable, op, key, err)
}

// Put сохраняет код, перезаписывая прежний и обновляя TTL
func (s *VerificationStore) Put(ctx context.Context, purpose entity.Purpose, subject, code string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := repository.CodeKey(purpose, subject)
	if err := s.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return unavailable("SET", key, err)
	}
	return nil
}

// Get возвращает код или apperrors.ErrNotFound
func (s *VerificationStore) Get(ctx context.Context, purpose entity.Purpose, subject string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := repository.CodeKey(purpose, subject)
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		return "", unavailable("GET", key, err)
	}
	return val, nil
}

// Invalidate удаляет код
func (s *VerificationStore) Invalidate(ctx context.Context, purpose entity.Purpose, subject string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := repository.CodeKey(purpose, subject)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable("DEL", key, err)
	}
	return nil
}

// Exists проверяет наличие живого кода
func (s *VerificationStore) Exists(ctx context.Context, purpose entity.Purpose, subject string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := repository.CodeKey(purpose, subject)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable("EXISTS", key, err)
	}
	return n > 0, nil
}

// CheckAndIncrement реализует счетчик фиксированного окна одним Lua-скриптом
func (s *VerificationStore) CheckAndIncrement(ctx context.Context, scope entity.RateLimitScope, subject string, ceiling int, window time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := repository.CounterKey(scope, subject)
	allowed, err := checkAndIncrementScript.Run(ctx, s.client, []string{key}, ceiling, window.Milliseconds()).Int()
	if err != nil {
		return false, unavailable("EVALSHA", key, err)
	}
	return allowed == 1, nil
}

// Revoke помечает сессию отозванной до конца ее срока жизни
func (s *VerificationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := repository.SessionRevokedKey(sessionID)
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return unavailable("SET", key, err)
	}
	return nil
}

// IsRevoked проверяет, отозвана ли сессия
func (s *VerificationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := repository.SessionRevokedKey(sessionID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable("EXISTS", key, err)
	}
	return n > 0, nil
}

// Ping проверяет соединение с Redis
func (s *VerificationStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("PING", "", err)
	}
	return nil
}
