package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
	"github.com/yourusername/homepage-api/internal/service"
)

// CaptchaHandler выдает графическую капчу и коды подтверждения по email
type CaptchaHandler struct {
	verification *service.VerificationService
	log          *zap.Logger
}

// NewCaptchaHandler создает обработчик кодов подтверждения
func NewCaptchaHandler(verification *service.VerificationService, log *zap.Logger) *CaptchaHandler {
	return &CaptchaHandler{
		verification: verification,
		log:          log.Named("captcha_handler"),
	}
}

// SendEmailCodeRequest представляет запрос кода на email
type SendEmailCodeRequest struct {
	Email string `json:"email" form:"email"`
}

// GetCaptcha выдает новую капчу для IP клиента.
// GET /captcha
func (h *CaptchaHandler) GetCaptcha(c *gin.Context) {
	image, err := h.verification.IssueImage(c.Request.Context(), c.ClientIP())
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"captcha": image})
}

// SendEmailCode отправляет шестизначный код на указанный адрес.
// POST /send_email_code
func (h *CaptchaHandler) SendEmailCode(c *gin.Context) {
	var req SendEmailCodeRequest
	// формат адреса проверяет сервис, здесь отсекаем только неразбираемое тело
	if err := c.ShouldBind(&req); err != nil {
		handleFormError(c, h.log, fmt.Errorf("%w: malformed request body", apperrors.ErrValidation))
		return
	}

	if err := h.verification.IssueEmail(c.Request.Context(), c.ClientIP(), req.Email); err != nil {
		handleFormError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent"})
}
