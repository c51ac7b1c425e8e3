package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/config"
	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	"github.com/yourusername/homepage-api/internal/metrics"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

const (
	emailCodeSubject = "Registration verification code"
	maxEmailLength   = 120
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail проверяет формат адреса
func ValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// CodeGenerator выдает случайный код для назначения
type CodeGenerator interface {
	Generate(purpose entity.Purpose) (string, error)
}

// ImageRenderer рисует код и возвращает base64 PNG
type ImageRenderer interface {
	Render(code string) (string, error)
}

// AccountLookup проверяет, занят ли email зарегистрированным пользователем
type AccountLookup interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// VerificationService выдает и проверяет коды подтверждения.
// Состояния ключа: нет кода -> выдан -> {погашен | истек}.
type VerificationService struct {
	store     repository.VerificationStore
	limiter   *RateLimiter
	generator CodeGenerator
	renderer  ImageRenderer
	mailer    MailDispatcher
	accounts  AccountLookup
	metrics   *metrics.Metrics
	log       *zap.Logger

	imageTTL     time.Duration
	emailTTL     time.Duration
	storeTimeout time.Duration
	mailTimeout  time.Duration
}

// NewVerificationService создает сервис кодов подтверждения
func NewVerificationService(
	store repository.VerificationStore,
	limiter *RateLimiter,
	generator CodeGenerator,
	renderer ImageRenderer,
	mailer MailDispatcher,
	accounts AccountLookup,
	cfg config.VerificationConfig,
	mailTimeout time.Duration,
	m *metrics.Metrics,
	log *zap.Logger,
) *VerificationService {
	return &VerificationService{
		store:        store,
		limiter:      limiter,
		generator:    generator,
		renderer:     renderer,
		mailer:       mailer,
		accounts:     accounts,
		metrics:      m,
		log:          log.Named("verification"),
		imageTTL:     time.Duration(cfg.ImageTTLSec) * time.Second,
		emailTTL:     time.Duration(cfg.EmailTTLSec) * time.Second,
		storeTimeout: time.Duration(cfg.StoreTimeoutSec) * time.Second,
		mailTimeout:  mailTimeout,
	}
}

// IssueImage выдает графическую капчу для IP и возвращает картинку в base64
func (s *VerificationService) IssueImage(ctx context.Context, ip string) (string, error) {
	if err := s.limiter.Allow(ctx, entity.ScopeImageIP, ip); err != nil {
		return "", s.limitFailure(entity.PurposeImage, err)
	}

	code, err := s.generator.Generate(entity.PurposeImage)
	if err != nil {
		return "", fmt.Errorf("generate image code: %w", err)
	}

	if err := s.put(ctx, entity.PurposeImage, ip, code, s.imageTTL); err != nil {
		return "", err
	}

	image, err := s.renderer.Render(code)
	if err != nil {
		return "", fmt.Errorf("render captcha: %w", err)
	}

	s.metrics.CodeIssued(string(entity.PurposeImage))
	return image, nil
}

// IssueEmail отправляет код подтверждения на recipient.
// При сбое отправки выданный код удаляется, наружу уходит только категория сбоя.
func (s *VerificationService) IssueEmail(ctx context.Context, ip, recipient string) error {
	recipient = strings.TrimSpace(recipient)
	if !ValidEmail(recipient) {
		s.metrics.IssuanceRefused(string(entity.PurposeEmail), "invalid_email")
		return fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	}

	registered, err := s.accounts.ExistsByEmail(ctx, recipient)
	if err != nil {
		return fmt.Errorf("check email owner: %w", err)
	}
	if registered {
		s.metrics.IssuanceRefused(string(entity.PurposeEmail), "already_registered")
		return ErrAlreadyRegistered
	}

	// сначала IP, затем получатель: счетчик IP учитывает попытку даже при отказе по получателю
	if err := s.limiter.Allow(ctx, entity.ScopeEmailIP, ip); err != nil {
		return s.limitFailure(entity.PurposeEmail, err)
	}
	if err := s.limiter.Allow(ctx, entity.ScopeEmailRecipient, recipient); err != nil {
		return s.limitFailure(entity.PurposeEmail, err)
	}

	code, err := s.generator.Generate(entity.PurposeEmail)
	if err != nil {
		return fmt.Errorf("generate email code: %w", err)
	}

	if err := s.put(ctx, entity.PurposeEmail, recipient, code, s.emailTTL); err != nil {
		return err
	}

	body := fmt.Sprintf("Your verification code is: %s. It is valid for %d minutes.",
		code, int(s.emailTTL.Minutes()))

	sendCtx, cancel := s.withTimeout(ctx, s.mailTimeout)
	err = s.mailer.Send(sendCtx, recipient, emailCodeSubject, body)
	cancel()
	if err != nil {
		category := ClassifyDispatchError(err)
		s.metrics.DispatchFailed(string(category))
		s.log.Warn("Не удалось отправить код подтверждения",
			zap.String("recipient", recipient),
			zap.String("category", string(category)),
			zap.Error(err))

		// откат должен пройти даже при отмене исходного запроса
		rollbackCtx, cancel := s.withTimeout(context.WithoutCancel(ctx), s.storeTimeout)
		defer cancel()
		if invErr := s.store.Invalidate(rollbackCtx, entity.PurposeEmail, recipient); invErr != nil {
			s.logStoreError("invalidate", invErr)
		}
		return &DispatchError{Category: category, Err: err}
	}

	s.metrics.CodeIssued(string(entity.PurposeEmail))
	s.log.Info("Код подтверждения отправлен", zap.String("recipient", recipient))
	return nil
}

// Check сравнивает предъявленный код с сохраненным, не погашая его.
// Нет кода -> Expired, несовпадение -> Invalid (код остается), совпадение -> Valid.
func (s *VerificationService) Check(ctx context.Context, purpose entity.Purpose, subject, submitted string) (entity.VerificationResult, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: unknown code purpose %q", apperrors.ErrValidation, purpose)
	}

	getCtx, cancel := s.withTimeout(ctx, s.storeTimeout)
	defer cancel()

	stored, err := s.store.Get(getCtx, purpose, subject)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.metrics.Validation(string(purpose), string(entity.VerificationExpired))
		return entity.VerificationExpired, nil
	}
	if err != nil {
		return "", s.storeFailure("get", err)
	}

	result := entity.VerificationInvalid
	if codesMatch(purpose, stored, submitted) {
		result = entity.VerificationValid
	}
	s.metrics.Validation(string(purpose), string(result))
	return result, nil
}

// Redeem погашает код. Повторное погашение отсутствующего кода не ошибка.
func (s *VerificationService) Redeem(ctx context.Context, purpose entity.Purpose, subject string) error {
	delCtx, cancel := s.withTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Invalidate(delCtx, purpose, subject); err != nil {
		return s.storeFailure("invalidate", err)
	}
	return nil
}

// Validate - Check с погашением кода при совпадении
func (s *VerificationService) Validate(ctx context.Context, purpose entity.Purpose, subject, submitted string) (entity.VerificationResult, error) {
	result, err := s.Check(ctx, purpose, subject, submitted)
	if err != nil || result != entity.VerificationValid {
		return result, err
	}
	if err := s.Redeem(ctx, purpose, subject); err != nil {
		return "", err
	}
	return entity.VerificationValid, nil
}

// codesMatch: картинка без учета регистра, письмо - точное совпадение
func codesMatch(purpose entity.Purpose, stored, submitted string) bool {
	if purpose == entity.PurposeImage {
		stored = strings.ToUpper(stored)
		submitted = strings.ToUpper(strings.TrimSpace(submitted))
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

func (s *VerificationService) put(ctx context.Context, purpose entity.Purpose, subject, code string, ttl time.Duration) error {
	putCtx, cancel := s.withTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Put(putCtx, purpose, subject, code, ttl); err != nil {
		return s.storeFailure("put", err)
	}
	return nil
}

func (s *VerificationService) limitFailure(purpose entity.Purpose, err error) error {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		s.metrics.IssuanceRefused(string(purpose), "rate_limited")
		s.log.Info("Выдача кода отклонена лимитом", zap.String("scope", string(rl.Scope)))
		return err
	}
	return s.storeFailure("check_and_increment", err)
}

// storeFailure логирует сбой хранилища и приводит ошибку к ErrStoreUnavailable
func (s *VerificationService) storeFailure(op string, err error) error {
	s.logStoreError(op, err)
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", apperrors.ErrStoreUnavailable, op, err)
}

func (s *VerificationService) logStoreError(op string, err error) {
	s.metrics.StoreError(op)
	s.log.Error("Хранилище кодов недоступно", zap.String("op", op), zap.Error(err))
}

func (s *VerificationService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
