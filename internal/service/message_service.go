package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

// MessageService управляет гостевой книгой
type MessageService struct {
	messageRepo repository.MessageRepository
	maxLength   int
	log         *zap.Logger
}

// NewMessageService создает сервис гостевой книги
func NewMessageService(messageRepo repository.MessageRepository, maxLength int, log *zap.Logger) *MessageService {
	if maxLength <= 0 {
		maxLength = 1000
	}
	return &MessageService{
		messageRepo: messageRepo,
		maxLength:   maxLength,
		log:         log.Named("guestbook"),
	}
}

// List возвращает все записи от новых к старым вместе с ответами
func (s *MessageService) List(ctx context.Context) ([]entity.Message, error) {
	return s.messageRepo.ListWithReplies(ctx)
}

// Post добавляет запись от пользователя
func (s *MessageService) Post(ctx context.Context, userID uint, content string) (*entity.Message, error) {
	content, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{UserID: userID, Content: content}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return msg, nil
}

// Reply добавляет ответ администратора к записи
func (s *MessageService) Reply(ctx context.Context, developerID, messageID uint, content string) (*entity.DeveloperReply, error) {
	content, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.messageRepo.GetByID(ctx, messageID); err != nil {
		return nil, err
	}

	reply := &entity.DeveloperReply{MessageID: messageID, DeveloperID: developerID, Content: content}
	if err := s.messageRepo.CreateReply(ctx, reply); err != nil {
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}
	return reply, nil
}

// Delete удаляет запись вместе с ответами
func (s *MessageService) Delete(ctx context.Context, messageID uint) error {
	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}
	s.log.Info("Запись гостевой книги удалена", zap.Uint("message_id", messageID))
	return nil
}

func (s *MessageService) cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return "", fmt.Errorf("%w: content is required", apperrors.ErrValidation)
	}
	if n > s.maxLength {
		return "", fmt.Errorf("%w: content must be at most %d characters", apperrors.ErrValidation, s.maxLength)
	}
	return content, nil
}
