package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PostThrottle - token bucket на пользователя для новых записей гостевой книги.
// Состояние живет в памяти процесса: это защита от флуда, а не квота.
type PostThrottle struct {
	mu       sync.Mutex
	limiters map[uint]*userLimiter
	r        rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

// NewPostThrottle создает ограничитель: perMinute записей в минуту, пачкой до burst
func NewPostThrottle(perMinute float64, burst int) *PostThrottle {
	if perMinute <= 0 {
		perMinute = 6
	}
	if burst <= 0 {
		burst = 1
	}
	return &PostThrottle{
		limiters: make(map[uint]*userLimiter),
		r:        rate.Limit(perMinute / 60),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

func (t *PostThrottle) get(userID uint) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if v, ok := t.limiters[userID]; ok {
		v.lastSeen = now
		return v.limiter
	}
	l := rate.NewLimiter(t.r, t.burst)
	t.limiters[userID] = &userLimiter{limiter: l, lastSeen: now}
	return l
}

// Cleanup удаляет ограничители пользователей, не писавших дольше idle
func (t *PostThrottle) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	removed := 0
	for id, v := range t.limiters {
		if now.Sub(v.lastSeen) > t.idle {
			delete(t.limiters, id)
			removed++
		}
	}
	return removed
}

// Limit возвращает middleware. Должен применяться ПОСЛЕ RequireAuth.
// Если обработчик отклонил запись (ответ 4xx/5xx), токен возвращается пользователю.
func (t *PostThrottle) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(ContextUserID)
		at := t.now()
		reservation := t.get(userID).ReserveN(at, 1)
		if !reservation.OK() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many messages", "error_type": "rate_limited"})
			return
		}
		delay := reservation.DelayFrom(at)
		if delay > 0 {
			reservation.CancelAt(at)
			retryAfter := int(math.Ceil(delay.Seconds()))
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "You are posting too fast. Please wait a moment.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()

		// CancelAt с моментом резервации: для более позднего момента rate ничего не вернет
		if c.Writer.Status() >= http.StatusBadRequest {
			reservation.CancelAt(at)
		}
	}
}
