package repository

import (
	"fmt"

	"github.com/yourusername/homepage-api/internal/domain/entity"
)

// Ключи хранилища совпадают с прежним развертыванием, чтобы живые коды и счетчики пережили переключение.

// CodeKey возвращает ключ кода: captcha:{ip} или email_code:{email}
func CodeKey(purpose entity.Purpose, subject string) string {
	switch purpose {
	case entity.PurposeImage:
		return "captcha:" + subject
	case entity.PurposeEmail:
		return "email_code:" + subject
	default:
		return fmt.Sprintf("code:%s:%s", purpose, subject)
	}
}

// CounterKey возвращает ключ счетчика для области
func CounterKey(scope entity.RateLimitScope, subject string) string {
	switch scope {
	case entity.ScopeImageIP:
		return "captcha_limit:" + subject
	case entity.ScopeEmailIP:
		return "email_code_ip_limit:" + subject
	case entity.ScopeEmailRecipient:
		return "email_code_limit:" + subject
	case entity.ScopeLoginIP:
		return "login_limit:" + subject
	default:
		return fmt.Sprintf("limit:%s:%s", scope, subject)
	}
}

// SessionRevokedKey возвращает ключ отозванной сессии
func SessionRevokedKey(sessionID string) string {
	return "session_revoked:" + sessionID
}
