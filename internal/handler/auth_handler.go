package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/config"
	"github.com/yourusername/homepage-api/internal/handler/dto"
	"github.com/yourusername/homepage-api/internal/middleware"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
	"github.com/yourusername/homepage-api/internal/service"
)

// AuthHandler обрабатывает регистрацию, вход и профиль
type AuthHandler struct {
	authService *service.AuthService
	session     config.SessionConfig
	log         *zap.Logger
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(authService *service.AuthService, session config.SessionConfig, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		session:     session,
		log:         log.Named("auth_handler"),
	}
}

// Структуры запросов

// RegisterRequest представляет форму регистрации (form или JSON)
type RegisterRequest struct {
	Username  string `json:"username" form:"username" binding:"required,username"`
	Email     string `json:"email" form:"email" binding:"required,email,max=120"`
	Password  string `json:"password" form:"password" binding:"required,strongpassword"`
	Captcha   string `json:"captcha" form:"captcha" binding:"required"`
	EmailCode string `json:"emailCode" form:"emailCode" binding:"required"`
}

// LoginRequest представляет запрос на вход: username может быть и email
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// CheckUsernameRequest представляет проверку занятости имени
type CheckUsernameRequest struct {
	Username string `json:"username" form:"username"`
}

// CheckEmailRequest представляет проверку занятости email
type CheckEmailRequest struct {
	Email string `json:"email" form:"email"`
}

// UpdateProfileRequest представляет изменение профиля; username необязателен
type UpdateProfileRequest struct {
	Username *string `json:"username" form:"username"`
	Bio      string  `json:"bio" form:"bio" binding:"max=1000"`
}

// ChangePasswordRequest представляет запрос на изменение пароля
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" form:"old_password" binding:"required"`
	NewPassword string `json:"new_password" form:"new_password" binding:"required,strongpassword"`
}

// Register обрабатывает регистрацию.
// POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": describeBindingError(err), "error_type": "validation_error"})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Captcha:   req.Captcha,
		EmailCode: req.EmailCode,
		IP:        c.ClientIP(),
	})
	if err != nil {
		handleFormError(c, h.log, err)
		return
	}

	h.log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Registration successful"})
}

// Login проверяет учетные данные и выставляет cookie сессии.
// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		bindingError(c, err)
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Login successful",
		"username": user.Username,
		"is_admin": user.IsAdmin(),
	})
}

// Logout отзывает текущую сессию и удаляет cookie.
// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.SessionClaims(c)
	if !ok {
		handleError(c, h.log, apperrors.ErrUnauthorized)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		handleError(c, h.log, err)
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// CheckUsername сообщает, занято ли имя.
// POST /check_username
func (h *AuthHandler) CheckUsername(c *gin.Context) {
	var req CheckUsernameRequest
	_ = c.ShouldBind(&req)

	exists, err := h.authService.UsernameExists(c.Request.Context(), req.Username)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ExistsResponse{Exists: exists})
}

// CheckEmail сообщает, занят ли email.
// POST /check_email
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req CheckEmailRequest
	_ = c.ShouldBind(&req)

	exists, err := h.authService.EmailExists(c.Request.Context(), req.Email)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ExistsResponse{Exists: exists})
}

// CheckLogin сообщает состояние сессии. Требует OptionalAuth.
// GET /api/check_login
func (h *AuthHandler) CheckLogin(c *gin.Context) {
	claims, ok := middleware.SessionClaims(c)
	if !ok {
		c.JSON(http.StatusOK, dto.CheckLoginResponse{LoggedIn: false})
		return
	}

	// роль и имя берутся из базы: они могли измениться после входа
	user, err := h.authService.GetUserByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusOK, dto.CheckLoginResponse{LoggedIn: false})
		return
	}
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.CheckLoginResponse{
		LoggedIn: true,
		Username: user.Username,
		IsAdmin:  user.IsAdmin(),
	})
}

// UserInfo возвращает профиль текущего пользователя.
// GET /api/user_info
func (h *AuthHandler) UserInfo(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uint)

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.UserInfoResponse{
		Username: user.Username,
		Email:    user.Email,
		Bio:      user.Bio,
		IsAdmin:  user.IsAdmin(),
	})
}

// UpdateProfile меняет описание и имя пользователя.
// POST /profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uint)

	var req UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		bindingError(c, err)
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, req.Username, req.Bio)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Profile updated",
		"username": user.Username,
		"bio":      user.Bio,
	})
}

// ChangePassword меняет пароль текущего пользователя.
// POST /api/change_password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uint)

	var req ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		bindingError(c, err)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect", "error_type": "invalid_credentials"})
			return
		}
		handleError(c, h.log, err)
		return
	}

	h.log.Info("Password changed", zap.Uint("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.CookieName, token, h.session.TTLHours*3600, "/", "", h.session.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.CookieName, "", -1, "/", "", h.session.Secure, true)
}
