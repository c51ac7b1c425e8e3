package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/homepage-api/internal/config"
	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
)

// Quota - потолок выдач в фиксированном окне
type Quota struct {
	Ceiling int
	Window  time.Duration
}

// RateLimiter применяет квоты по областям поверх CounterStore
type RateLimiter struct {
	store   repository.CounterStore
	quotas  map[entity.RateLimitScope]Quota
	timeout time.Duration
}

// NewRateLimiter создает ограничитель с квотами из конфигурации
func NewRateLimiter(store repository.CounterStore, cfg config.VerificationConfig) *RateLimiter {
	return &RateLimiter{
		store: store,
		quotas: map[entity.RateLimitScope]Quota{
			entity.ScopeImageIP:        {Ceiling: cfg.ImageLimit.Ceiling, Window: cfg.ImageLimit.Window()},
			entity.ScopeEmailIP:        {Ceiling: cfg.EmailIPLimit.Ceiling, Window: cfg.EmailIPLimit.Window()},
			entity.ScopeEmailRecipient: {Ceiling: cfg.EmailRecipientLimit.Ceiling, Window: cfg.EmailRecipientLimit.Window()},
		},
		timeout: time.Duration(cfg.StoreTimeoutSec) * time.Second,
	}
}

// Allow учитывает одну выдачу в области scope. При отказе возвращает *RateLimitError,
// счетчик при этом не увеличивается. Ошибки хранилища пробрасываются как есть.
func (l *RateLimiter) Allow(ctx context.Context, scope entity.RateLimitScope, subject string) error {
	quota, ok := l.quotas[scope]
	if !ok {
		return fmt.Errorf("unknown rate limit scope %q", scope)
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	allowed, err := l.store.CheckAndIncrement(ctx, scope, subject, quota.Ceiling, quota.Window)
	if err != nil {
		return err
	}
	if !allowed {
		return &RateLimitError{Scope: scope, RetryAfter: quota.Window}
	}
	return nil
}
