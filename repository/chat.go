package repository

import (
	"healthcare_assistant/entity"
	"healthcare_assistant/model"
)

type ChatRepository interface {
	Insert(chat *entity.Chat) error
	Get(chatID string) (*entity.Chat, error)
	List(condition *model.GetChatsCondition) ([]*entity.Chat, int64, error)
	Update(chatID string, req *model.UpdateChatCondition) error
}
