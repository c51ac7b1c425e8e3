// Package memory содержит in-process реализации хранилищ для режима одного инстанса
// и для тестов. Истекшие записи удаляются лениво при чтении и периодически в Sweep.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

type codeKey struct {
	purpose entity.Purpose
	subject string
}

type counterKey struct {
	scope   entity.RateLimitScope
	subject string
}

// VerificationStore - потокобезопасное хранилище кодов, счетчиков и отозванных сессий
type VerificationStore struct {
	mu       sync.Mutex
	codes    map[codeKey]*entity.VerificationCode
	counters map[counterKey]*entity.RateLimitCounter
	revoked  map[string]time.Time
	now      func() time.Time
}

var (
	_ repository.VerificationStore      = (*VerificationStore)(nil)
	_ repository.CounterStore           = (*VerificationStore)(nil)
	_ repository.SessionRevocationStore = (*VerificationStore)(nil)
)

// Option настраивает VerificationStore
type Option func(*VerificationStore)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(s *VerificationStore) {
		s.now = now
	}
}

// NewVerificationStore создает пустое хранилище
func NewVerificationStore(opts ...Option) *VerificationStore {
	s := &VerificationStore{
		codes:    make(map[codeKey]*entity.VerificationCode),
		counters: make(map[counterKey]*entity.RateLimitCounter),
		revoked:  make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put сохраняет код, перезаписывая прежний и обновляя TTL
func (s *VerificationStore) Put(_ context.Context, purpose entity.Purpose, subject, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[codeKey{purpose, subject}] = &entity.VerificationCode{
		Subject:  subject,
		Purpose:  purpose,
		Code:     code,
		IssuedAt: s.now(),
		TTL:      ttl,
	}
	return nil
}

// Get возвращает код или apperrors.ErrNotFound
func (s *VerificationStore) Get(_ context.Context, purpose entity.Purpose, subject string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey{purpose, subject}
	rec, ok := s.codes[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	if rec.IsExpired(s.now()) {
		delete(s.codes, key)
		return "", apperrors.ErrNotFound
	}
	return rec.Code, nil
}

// Invalidate удаляет код
func (s *VerificationStore) Invalidate(_ context.Context, purpose entity.Purpose, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, codeKey{purpose, subject})
	return nil
}

// Exists проверяет наличие живого кода
func (s *VerificationStore) Exists(ctx context.Context, purpose entity.Purpose, subject string) (bool, error) {
	_, err := s.Get(ctx, purpose, subject)
	if err == apperrors.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// CheckAndIncrement реализует счетчик фиксированного окна с ленивым сбросом
func (s *VerificationStore) CheckAndIncrement(_ context.Context, scope entity.RateLimitScope, subject string, ceiling int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := counterKey{scope, subject}
	c, ok := s.counters[key]
	if !ok {
		c = &entity.RateLimitCounter{Scope: scope, Subject: subject, Window: window}
		s.counters[key] = c
	} else if c.Count > 0 && c.Elapsed(now) {
		c.Count = 0
	}

	if c.Count >= ceiling {
		return false, nil
	}
	if c.Count == 0 {
		c.WindowStart = now
		c.Window = window
	}
	c.Count++
	return true, nil
}

// Revoke помечает сессию отозванной до конца ее срока жизни
func (s *VerificationStore) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[sessionID] = s.now().Add(ttl)
	return nil
}

// IsRevoked проверяет, отозвана ли сессия
func (s *VerificationStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.revoked, sessionID)
		return false, nil
	}
	return true, nil
}

// Ping всегда успешен
func (s *VerificationStore) Ping(context.Context) error {
	return nil
}

// Sweep удаляет истекшие коды, закончившиеся окна и отзывы. Возвращает число удаленных записей.
func (s *VerificationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, rec := range s.codes {
		if rec.IsExpired(now) {
			delete(s.codes, k)
			removed++
		}
	}
	for k, c := range s.counters {
		if c.Elapsed(now) {
			delete(s.counters, k)
			removed++
		}
	}
	for k, until := range s.revoked {
		if !now.Before(until) {
			delete(s.revoked, k)
			removed++
		}
	}
	return removed
}

// RunSweeper периодически вызывает Sweep до отмены ctx
func (s *VerificationStore) RunSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.Sweep()
			if onSweep != nil {
				onSweep(removed)
			}
		case <-ctx.Done():
			return
		}
	}
}
