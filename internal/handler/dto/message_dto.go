package dto

// MessageResponse представляет запись гостевой книги
type MessageResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Content   string          `json:"content"`
	Date      string          `json:"date"` // 2006-01-02 15:04:05
	CanManage bool            `json:"can_manage,omitempty"`
	Replies   []ReplyResponse `json:"replies"`
}

// ReplyResponse представляет ответ администратора
type ReplyResponse struct {
	ID        uint   `json:"id"`
	Developer string `json:"developer"`
	Content   string `json:"content"`
	Date      string `json:"date"`
}
