package helper

import (
	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/handler/dto"
)

// DateLayout - формат даты записей гостевой книги
const DateLayout = "2006-01-02 15:04:05"

// ConvertMessages преобразует записи в ответ API.
// canManage выставляется всем записям, если смотрит администратор.
func ConvertMessages(messages []entity.Message, canManage bool) []dto.MessageResponse {
	converted := make([]dto.MessageResponse, len(messages))
	for i, m := range messages {
		converted[i] = ConvertMessage(m, canManage)
	}
	return converted
}

// ConvertMessage преобразует одну запись вместе с ответами
func ConvertMessage(m entity.Message, canManage bool) dto.MessageResponse {
	replies := make([]dto.ReplyResponse, len(m.Replies))
	for i, r := range m.Replies {
		replies[i] = ConvertReply(r)
	}
	return dto.MessageResponse{
		ID:        m.ID,
		Username:  m.User.Username,
		Content:   m.Content,
		Date:      m.CreatedAt.Format(DateLayout),
		CanManage: canManage,
		Replies:   replies,
	}
}

// ConvertReply преобразует ответ администратора
func ConvertReply(r entity.DeveloperReply) dto.ReplyResponse {
	return dto.ReplyResponse{
		ID:        r.ID,
		Developer: r.Developer.Username,
		Content:   r.Content,
		Date:      r.CreatedAt.Format(DateLayout),
	}
}
