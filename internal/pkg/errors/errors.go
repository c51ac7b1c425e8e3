package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ключ не найдены (в т.ч. истекший код в хранилище).
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (нет сессии, сессия отозвана).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния (занятое имя пользователя или email).
	ErrConflict = errors.New("resource state conflict")

	// ErrRateLimited возвращается, когда счетчик достиг потолка в своем окне.
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable возвращается, когда хранилище кодов (Redis) недоступно или не ответило вовремя.
	ErrStoreUnavailable = errors.New("verification store unavailable")
)
