package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

const issuer = "homepage-api"

// SessionClaims - содержимое cookie сессии
type SessionClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin сообщает, выдана ли сессия администратору
func (c *SessionClaims) IsAdmin() bool {
	return c.Role == entity.RoleAdmin
}

// SessionManager выпускает и проверяет подписанные HS256 токены сессий.
// Выход из системы заносит jti токена в список отозванных до истечения срока.
type SessionManager struct {
	secret      []byte
	ttl         time.Duration
	revocations repository.SessionRevocationStore
	now         func() time.Time
}

// NewSessionManager создает менеджер сессий
func NewSessionManager(secret string, ttl time.Duration, revocations repository.SessionRevocationStore) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if revocations == nil {
		return nil, errors.New("session revocation store is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		secret:      []byte(secret),
		ttl:         ttl,
		revocations: revocations,
		now:         time.Now,
	}, nil
}

// TTL возвращает срок жизни сессии
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue выпускает токен сессии для пользователя
func (m *SessionManager) Issue(user *entity.User) (string, *SessionClaims, error) {
	now := m.now()
	claims := &SessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, claims, nil
}

// Parse проверяет подпись, срок и отзыв токена.
// Недействительный токен дает apperrors.ErrUnauthorized, сбой хранилища пробрасывается.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, apperrors.ErrUnauthorized
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	if claims.Issuer != issuer || claims.ID == "" {
		return nil, fmt.Errorf("%w: foreign token", apperrors.ErrUnauthorized)
	}

	revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: session revoked", apperrors.ErrUnauthorized)
	}
	return claims, nil
}

// Revoke отзывает сессию до конца ее срока жизни
func (m *SessionManager) Revoke(ctx context.Context, claims *SessionClaims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revocations.Revoke(ctx, claims.ID, ttl)
}
