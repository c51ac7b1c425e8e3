package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
)

// MessageRepo реализует repository.MessageRepository
type MessageRepo struct {
	db *gorm.DB
}

var _ repository.MessageRepository = (*MessageRepo)(nil)

// NewMessageRepo создает репозиторий гостевой книги
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create добавляет запись
func (r *MessageRepo) Create(ctx context.Context, message *entity.Message) error {
	return r.db.WithContext(ctx).Omit("User").Create(message).Error
}

// GetByID возвращает запись по ID
func (r *MessageRepo) GetByID(ctx context.Context, id uint) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListWithReplies возвращает записи от новых к старым с авторами и ответами
func (r *MessageRepo) ListWithReplies(ctx context.Context) ([]entity.Message, error) {
	var messages []entity.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("developer_replies.created_at ASC")
		}).
		Preload("Replies.Developer").
		Order("messages.created_at DESC, messages.id DESC").
		Find(&messages).Error
	return messages, err
}

// Delete удаляет запись и ее ответы в одной транзакции
func (r *MessageRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&entity.DeveloperReply{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.Message{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// CreateReply добавляет ответ администратора
func (r *MessageRepo) CreateReply(ctx context.Context, reply *entity.DeveloperReply) error {
	return r.db.WithContext(ctx).Omit("Developer").Create(reply).Error
}
