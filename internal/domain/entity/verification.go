package entity

import "time"

// Purpose определяет назначение кода подтверждения
type Purpose string

const (
	PurposeImage Purpose = "image"
	PurposeEmail Purpose = "email"
)

// Valid сообщает, известно ли назначение
func (p Purpose) Valid() bool {
	return p == PurposeImage || p == PurposeEmail
}

// RateLimitScope - измерение счетчика ограничения частоты.
// Счетчики разных областей никогда не разделяются.
type RateLimitScope string

const (
	ScopeImageIP        RateLimitScope = "per-ip-image"
	ScopeEmailIP        RateLimitScope = "per-ip-email"
	ScopeEmailRecipient RateLimitScope = "per-recipient-email"
	// ScopeLoginIP ограничивает попытки входа и регистрации с одного IP
	ScopeLoginIP RateLimitScope = "per-ip-login"
)

// VerificationCode - выданный и еще не погашенный код.
// На ключ (Purpose, Subject) хранится не более одного живого кода.
type VerificationCode struct {
	Subject  string
	Purpose  Purpose
	Code     string
	IssuedAt time.Time
	TTL      time.Duration
}

// ExpiresAt возвращает момент истечения кода
func (v *VerificationCode) ExpiresAt() time.Time {
	return v.IssuedAt.Add(v.TTL)
}

// IsExpired сообщает, истек ли код к моменту now
func (v *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(v.ExpiresAt())
}

// RateLimitCounter - счетчик фиксированного окна
type RateLimitCounter struct {
	Subject     string
	Scope       RateLimitScope
	Count       int
	WindowStart time.Time
	Window      time.Duration
}

// Elapsed сообщает, закончилось ли окно к моменту now
func (c *RateLimitCounter) Elapsed(now time.Time) bool {
	return !now.Before(c.WindowStart.Add(c.Window))
}

// VerificationResult - итог проверки предъявленного кода
type VerificationResult string

const (
	VerificationValid   VerificationResult = "valid"
	VerificationInvalid VerificationResult = "invalid"
	VerificationExpired VerificationResult = "expired"
)
