package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
	"github.com/yourusername/homepage-api/internal/service"
)

// apiError - результат сопоставления ошибки сервиса с HTTP ответом
type apiError struct {
	Status     int
	Type       string
	Message    string
	RetryAfter int
}

var dispatchMessages = map[service.DispatchCategory]string{
	service.DispatchConnection: "Could not connect to the mail server, please check the mail configuration",
	service.DispatchTimeout:    "Sending the email timed out, please try again later",
	service.DispatchAuth:       "Mail server authentication failed, please check the username and password",
	service.DispatchTLS:        "SSL/TLS error while talking to the mail server",
	service.DispatchRejected:   "The mail server rejected the message",
	service.DispatchUnknown:    "Failed to send the verification code",
}

// classifyError сопоставляет ошибку слоя сервисов со статусом и стабильным error_type
func classifyError(err error) apiError {
	var (
		rateErr     *service.RateLimitError
		dispatchErr *service.DispatchError
	)

	switch {
	case errors.As(err, &rateErr):
		return apiError{
			Status:     http.StatusTooManyRequests,
			Type:       "rate_limited",
			Message:    "Too many requests, please try again later",
			RetryAfter: int(math.Ceil(rateErr.RetryAfter.Seconds())),
		}
	case errors.Is(err, apperrors.ErrRateLimited):
		return apiError{Status: http.StatusTooManyRequests, Type: "rate_limited", Message: "Too many requests, please try again later"}
	case errors.As(err, &dispatchErr):
		msg, ok := dispatchMessages[dispatchErr.Category]
		if !ok {
			msg = dispatchMessages[service.DispatchUnknown]
		}
		return apiError{Status: http.StatusInternalServerError, Type: "dispatch_" + string(dispatchErr.Category), Message: msg}
	case errors.Is(err, service.ErrDispatchFailed):
		return apiError{Status: http.StatusInternalServerError, Type: "dispatch_unknown", Message: dispatchMessages[service.DispatchUnknown]}
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return apiError{Status: http.StatusServiceUnavailable, Type: "store_unavailable", Message: "Service temporarily unavailable, please try again later"}
	case errors.Is(err, service.ErrAlreadyRegistered):
		return apiError{Status: http.StatusConflict, Type: "already_registered", Message: "This email is already registered"}
	case errors.Is(err, service.ErrInvalidCaptcha):
		return apiError{Status: http.StatusBadRequest, Type: "invalid_captcha", Message: "Incorrect image code"}
	case errors.Is(err, service.ErrInvalidEmailCode):
		return apiError{Status: http.StatusBadRequest, Type: "invalid_email_code", Message: "Incorrect email verification code"}
	case errors.Is(err, service.ErrCodeExpired):
		return apiError{Status: http.StatusBadRequest, Type: "code_expired", Message: "The verification code has expired, please request a new one"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return apiError{Status: http.StatusUnauthorized, Type: "invalid_credentials", Message: "Incorrect username or password"}
	case errors.Is(err, service.ErrWeakPassword):
		return apiError{Status: http.StatusBadRequest, Type: "weak_password", Message: detail(err, service.ErrWeakPassword)}
	case errors.Is(err, apperrors.ErrValidation):
		return apiError{Status: http.StatusBadRequest, Type: "validation_error", Message: detail(err, apperrors.ErrValidation)}
	case errors.Is(err, apperrors.ErrConflict):
		return apiError{Status: http.StatusConflict, Type: "conflict", Message: detail(err, apperrors.ErrConflict)}
	case errors.Is(err, apperrors.ErrUnauthorized):
		return apiError{Status: http.StatusUnauthorized, Type: "unauthorized", Message: "Please log in first"}
	case errors.Is(err, apperrors.ErrForbidden):
		return apiError{Status: http.StatusForbidden, Type: "forbidden", Message: "Permission denied"}
	case errors.Is(err, apperrors.ErrNotFound):
		return apiError{Status: http.StatusNotFound, Type: "not_found", Message: "Requested resource not found"}
	default:
		return apiError{Status: http.StatusInternalServerError, Type: "internal_server_error", Message: "Internal server error"}
	}
}

// detail возвращает пояснение из ошибки вида "<sentinel>: <пояснение>"
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return sentinel.Error()
}

func logAPIError(log *zap.Logger, c *gin.Context, e apiError, err error) {
	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("error_type", e.Type),
		zap.Error(err),
	}
	switch {
	case e.Status >= http.StatusInternalServerError:
		log.Error("Request failed", fields...)
	case e.Status == http.StatusTooManyRequests:
		log.Info("Request rate limited", fields...)
	default:
		log.Debug("Request rejected", fields...)
	}
}

func setRetryAfter(c *gin.Context, e apiError) {
	if e.RetryAfter > 0 {
		c.Header("Retry-After", fmt.Sprintf("%d", e.RetryAfter))
	}
}

// handleError отвечает {"error", "error_type"}
func handleError(c *gin.Context, log *zap.Logger, err error) {
	e := classifyError(err)
	logAPIError(log, c, e, err)
	setRetryAfter(c, e)
	body := gin.H{"error": e.Message, "error_type": e.Type}
	if e.RetryAfter > 0 {
		body["retry_after"] = e.RetryAfter
	}
	c.JSON(e.Status, body)
}

// handleFormError отвечает {"success": false, "message", "error_type"} для форм регистрации
func handleFormError(c *gin.Context, log *zap.Logger, err error) {
	e := classifyError(err)
	logAPIError(log, c, e, err)
	setRetryAfter(c, e)
	c.JSON(e.Status, gin.H{"success": false, "message": e.Message, "error_type": e.Type})
}

// bindingError отвечает 400 на ошибку разбора тела запроса
func bindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": describeBindingError(err), "error_type": "validation_error"})
}
