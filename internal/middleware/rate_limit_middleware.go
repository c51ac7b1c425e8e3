package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	// Window - фиксированное окно подсчета
	Window time.Duration
	// Scope - область счетчика в хранилище
	Scope entity.RateLimitScope
}

// StrictAuthRateLimitConfig - строгий лимит для login/register (защита от brute-force)
func StrictAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 5,
		Window:      1 * time.Minute,
		Scope:       entity.ScopeLoginIP,
	}
}

// RateLimiter ограничивает частоту запросов по IP поверх общего хранилища счетчиков
type RateLimiter struct {
	counters repository.CounterStore
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(counters repository.CounterStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{counters: counters, timeout: 2 * time.Second, logger: logger.Named("rate_limiter")}
}

// LimitByIP возвращает Gin middleware с заданной конфигурацией.
// Отказ хранилища пропускает запрос (fail-open): это вспомогательная защита,
// выдача кодов подтверждения ограничивается отдельно и закрывается при сбое.
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		ctx, cancel := context.WithTimeout(c.Request.Context(), rl.timeout)
		defer cancel()

		allowed, err := rl.counters.CheckAndIncrement(ctx, cfg.Scope, clientIP, cfg.MaxRequests, cfg.Window)
		if err != nil {
			rl.logger.Warn("Counter store error, allowing request",
				zap.String("scope", string(cfg.Scope)),
				zap.String("ip", clientIP),
				zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))

		if !allowed {
			retryAfter := int(cfg.Window.Seconds())
			rl.logger.Info("Rate limit exceeded",
				zap.String("scope", string(cfg.Scope)),
				zap.String("ip", clientIP),
				zap.String("path", c.FullPath()))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
