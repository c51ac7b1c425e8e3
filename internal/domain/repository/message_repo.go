package repository

import (
	"context"

	"github.com/yourusername/homepage-api/internal/domain/entity"
)

// MessageRepository определяет методы для работы с гостевой книгой
type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id uint) (*entity.Message, error)
	// ListWithReplies возвращает записи от новых к старым вместе с ответами и авторами
	ListWithReplies(ctx context.Context) ([]entity.Message, error)
	Delete(ctx context.Context, id uint) error
	CreateReply(ctx context.Context, reply *entity.DeveloperReply) error
}
