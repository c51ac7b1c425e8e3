package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

// Ошибки сервисов, которые обработчики переводят в стабильный error_type
var (
	ErrAlreadyRegistered  = errors.New("already_registered")
	ErrDispatchFailed     = errors.New("dispatch_failed")
	ErrInvalidCaptcha     = errors.New("invalid_captcha")
	ErrInvalidEmailCode   = errors.New("invalid_email_code")
	ErrCodeExpired        = errors.New("code_expired")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrWeakPassword       = errors.New("weak_password")
)

// DispatchCategory - грубая категория сбоя почтового транспорта.
// Наружу уходит только она, без текста ошибки транспорта.
type DispatchCategory string

const (
	DispatchConnection DispatchCategory = "connection"
	DispatchTimeout    DispatchCategory = "timeout"
	DispatchAuth       DispatchCategory = "auth"
	DispatchTLS        DispatchCategory = "tls"
	DispatchRejected   DispatchCategory = "rejected"
	DispatchUnknown    DispatchCategory = "unknown"
)

// DispatchError оборачивает ошибку отправки письма вместе с ее категорией.
type DispatchError struct {
	Category DispatchCategory
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("mail dispatch failed (%s): %v", e.Category, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Is позволяет сравнивать через errors.Is(err, ErrDispatchFailed).
func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatchFailed
}

// RateLimitError сообщает, какая область отказала и когда можно повторить.
type RateLimitError struct {
	Scope      entity.RateLimitScope
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%s), retry after %s", e.Scope, e.RetryAfter)
}

// Is позволяет сравнивать через errors.Is(err, apperrors.ErrRateLimited).
func (e *RateLimitError) Is(target error) bool {
	return target == apperrors.ErrRateLimited
}
