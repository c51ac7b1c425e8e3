package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
	"github.com/yourusername/homepage-api/pkg/auth"
)

// Ключи контекста gin, которые выставляет аутентификация
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextIsAdmin  = "is_admin"
	ContextClaims   = "session_claims"
)

// AuthMiddleware обеспечивает аутентификацию по cookie сессии
type AuthMiddleware struct {
	sessions   *auth.SessionManager
	cookieName string
	logger     *zap.Logger
}

// NewAuthMiddleware создает middleware аутентификации
func NewAuthMiddleware(sessions *auth.SessionManager, cookieName string, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		sessions:   sessions,
		cookieName: cookieName,
		logger:     logger.Named("auth_middleware"),
	}
}

// RequireAuth пропускает только запросы с действующей сессией
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errType := m.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please log in first", "error_type": errType})
			c.Abort()
			return
		}

		claims, err := m.sessions.Parse(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session", "error_type": "token_invalid"})
			} else {
				// Список отзыва недоступен: сессию нельзя проверить
				m.logger.Error("Session revocation check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable", "error_type": "store_unavailable"})
			}
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth выставляет данные сессии, если она есть, но не требует ее
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := m.extractToken(c)
		if token != "" {
			claims, err := m.sessions.Parse(c.Request.Context(), token)
			if err == nil {
				setClaims(c, claims)
			} else if !errors.Is(err, apperrors.ErrUnauthorized) {
				m.logger.Warn("Optional session check failed", zap.Error(err))
			}
		}
		c.Next()
	}
}

// AdminOnly проверяет, является ли пользователь администратором.
// Должен применяться ПОСЛЕ RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please log in first", "error_type": "token_missing"})
			c.Abort()
			return
		}

		if !c.GetBool(ContextIsAdmin) {
			m.logger.Warn("Non-admin access attempt",
				zap.Uint("user_id", c.GetUint(ContextUserID)),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin rights required", "error_type": "forbidden"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractToken берет токен из cookie, а при ее отсутствии из заголовка Authorization
func (m *AuthMiddleware) extractToken(c *gin.Context) (string, string) {
	if cookie, err := c.Cookie(m.cookieName); err == nil && cookie != "" {
		return cookie, ""
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "token_missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "token_format"
	}
	return parts[1], ""
}

func setClaims(c *gin.Context, claims *auth.SessionClaims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextIsAdmin, claims.IsAdmin())
	c.Set(ContextClaims, claims)
}

// SessionClaims возвращает данные сессии, выставленные RequireAuth или OptionalAuth
func SessionClaims(c *gin.Context) (*auth.SessionClaims, bool) {
	v, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.SessionClaims)
	return claims, ok
}
