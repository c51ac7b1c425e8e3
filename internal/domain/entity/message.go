package entity

import "time"

// Message - запись в гостевой книге
type Message struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	User      User             `gorm:"foreignKey:UserID" json:"-"`
	Content   string           `gorm:"type:text;not null" json:"content"`
	Replies   []DeveloperReply `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"replies"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Message) TableName() string {
	return "messages"
}

// DeveloperReply - ответ администратора на запись в гостевой книге
type DeveloperReply struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageID   uint      `gorm:"not null;index" json:"message_id"`
	DeveloperID uint      `gorm:"not null" json:"developer_id"`
	Developer   User      `gorm:"foreignKey:DeveloperID" json:"-"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (DeveloperReply) TableName() string {
	return "developer_replies"
}
