package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
	"github.com/yourusername/homepage-api/pkg/auth"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 80
	maxBioLength      = 1000
)

// CodeVerifier проверяет и погашает коды подтверждения
type CodeVerifier interface {
	Check(ctx context.Context, purpose entity.Purpose, subject, submitted string) (entity.VerificationResult, error)
	Redeem(ctx context.Context, purpose entity.Purpose, subject string) error
}

// AuthService отвечает за регистрацию, вход и профиль пользователя
type AuthService struct {
	userRepo repository.UserRepository
	verifier CodeVerifier
	sessions *auth.SessionManager
	log      *zap.Logger
}

// RegisterInput содержит данные формы регистрации
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Captcha   string
	EmailCode string
	// IP - субъект графической капчи
	IP string
}

// NewAuthService создает сервис аутентификации
func NewAuthService(
	userRepo repository.UserRepository,
	verifier CodeVerifier,
	sessions *auth.SessionManager,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		verifier: verifier,
		sessions: sessions,
		log:      log.Named("auth"),
	}
}

// Register создает пользователя после проверки обоих кодов.
// Коды погашаются только после успешной записи пользователя.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if err := validateUsername(input.Username); err != nil {
		return nil, err
	}
	if !ValidEmail(input.Email) {
		return nil, fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Captcha) == "" || strings.TrimSpace(input.EmailCode) == "" {
		return nil, fmt.Errorf("%w: captcha and email code are required", apperrors.ErrValidation)
	}

	taken, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: username already taken", apperrors.ErrConflict)
	}
	taken, err = s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if taken {
		return nil, ErrAlreadyRegistered
	}

	if err := s.checkCode(ctx, entity.PurposeImage, input.IP, input.Captcha, ErrInvalidCaptcha); err != nil {
		return nil, err
	}
	if err := s.checkCode(ctx, entity.PurposeEmail, input.Email, input.EmailCode, ErrInvalidEmailCode); err != nil {
		return nil, err
	}

	user := &entity.User{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     entity.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// пользователь уже записан: сбой погашения не отменяет регистрацию, код истечет по TTL
	if err := s.verifier.Redeem(ctx, entity.PurposeImage, input.IP); err != nil {
		s.log.Error("Не удалось погасить капчу", zap.String("ip", input.IP), zap.Error(err))
	}
	if err := s.verifier.Redeem(ctx, entity.PurposeEmail, input.Email); err != nil {
		s.log.Error("Не удалось погасить код из письма", zap.String("email", input.Email), zap.Error(err))
	}

	s.log.Info("Зарегистрирован пользователь", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

func (s *AuthService) checkCode(ctx context.Context, purpose entity.Purpose, subject, code string, invalid error) error {
	result, err := s.verifier.Check(ctx, purpose, subject, code)
	if err != nil {
		return err
	}
	switch result {
	case entity.VerificationValid:
		return nil
	case entity.VerificationExpired:
		return fmt.Errorf("%w: %s", ErrCodeExpired, purpose)
	default:
		return invalid
	}
}

// Login проверяет пару логин/пароль (логином может быть имя или email) и выпускает сессию
func (s *AuthService) Login(ctx context.Context, login, password string) (string, *entity.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return "", nil, fmt.Errorf("%w: username and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByUsername(ctx, login)
	if errors.Is(err, apperrors.ErrNotFound) && strings.Contains(login, "@") {
		user, err = s.userRepo.GetByEmail(ctx, login)
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}

	token, _, err := s.sessions.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout отзывает текущую сессию
func (s *AuthService) Logout(ctx context.Context, claims *auth.SessionClaims) error {
	return s.sessions.Revoke(ctx, claims)
}

// UsernameExists сообщает, занято ли имя пользователя
func (s *AuthService) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.userRepo.ExistsByUsername(ctx, strings.TrimSpace(username))
}

// EmailExists сообщает, занят ли email
func (s *AuthService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.userRepo.ExistsByEmail(ctx, strings.TrimSpace(email))
}

// GetUserByID возвращает пользователя по ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfile обновляет описание и, если передано, имя пользователя
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, username *string, bio string) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(bio) > maxBioLength {
		return nil, fmt.Errorf("%w: bio must be at most %d characters", apperrors.ErrValidation, maxBioLength)
	}
	updates := map[string]interface{}{"bio": bio}

	if username != nil {
		name := strings.TrimSpace(*username)
		if name != user.Username {
			if err := validateUsername(name); err != nil {
				return nil, err
			}
			taken, err := s.userRepo.ExistsByUsername(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("failed to check username existence: %w", err)
			}
			if taken {
				return nil, fmt.Errorf("%w: username already taken", apperrors.ErrConflict)
			}
			updates["username"] = name
		}
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

// ChangePassword меняет пароль после проверки текущего
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	// хеширование выполняет репозиторий
	return s.userRepo.UpdatePassword(ctx, userID, newPassword)
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters", apperrors.ErrValidation, minUsernameLength, maxUsernameLength)
	}
	return nil
}
