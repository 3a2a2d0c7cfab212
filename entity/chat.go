package entity

import "time"

const (
	TableNameChats = "chats"

	ChatsFieldChatID    = "chat_id"
	ChatsFieldUserID    = "user_id"
	ChatsFieldIsPublic  = "is_public"
	ChatsFieldName      = "name"
	ChatsFieldCreatedAt = "created_at"
	ChatsFieldUpdatedAt = "updated_at"
)

type Chat struct {
	ChatID    string    `xorm:"pk chat_id" json:"chat_id"`
	UserID    string    `xorm:"user_id" json:"user_id"`
	IsPublic  bool      `xorm:"is_public" json:"is_public"`
	Name      string    `xorm:"name" json:"name"`
	CreatedAt time.Time `xorm:"created_at" json:"created_at"`
	UpdatedAt time.Time `xorm:"updated_at" json:"updated_at"`
}

func (e *Chat) TableName() string {
	return TableNameChats
}
