package repository

import (
	"context"
	"time"

	"github.com/yourusername/homepage-api/internal/domain/entity"
)

// VerificationStore - хранилище кодов с истечением по TTL.
// Все операции атомарны в пределах ключа (purpose, subject); Put - last-write-wins.
// Get возвращает apperrors.ErrNotFound, если кода нет или он истек.
// Ошибки доступа к хранилищу оборачивают apperrors.ErrStoreUnavailable.
type VerificationStore interface {
	Put(ctx context.Context, purpose entity.Purpose, subject, code string, ttl time.Duration) error
	Get(ctx context.Context, purpose entity.Purpose, subject string) (string, error)
	Invalidate(ctx context.Context, purpose entity.Purpose, subject string) error
	Exists(ctx context.Context, purpose entity.Purpose, subject string) (bool, error)
}

// CounterStore - счетчики фиксированного окна для ограничения частоты.
// CheckAndIncrement возвращает false без инкремента, если count >= ceiling;
// окно начинается с первого инкремента и сбрасывается при первом инкременте после его окончания.
type CounterStore interface {
	CheckAndIncrement(ctx context.Context, scope entity.RateLimitScope, subject string, ceiling int, window time.Duration) (bool, error)
}

// SessionRevocationStore хранит отозванные идентификаторы сессий до истечения их срока
type SessionRevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Pinger проверяет доступность хранилища (для /healthz)
type Pinger interface {
	Ping(ctx context.Context) error
}
