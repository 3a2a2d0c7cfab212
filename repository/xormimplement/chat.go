package xormimplement

import (
	"fmt"
	"time"

	"healthcare_assistant/entity"
	"healthcare_assistant/model"
	"healthcare_assistant/repository"

	"xorm.io/builder"
)

type ChatRepository struct {
	session *Session
}

func NewChatRepository(session *Session) repository.ChatRepository {
	return &ChatRepository{session: session}
}

func (r *ChatRepository) Insert(chat *entity.Chat) error {
	if chat == nil {
		return fmt.Errorf("chat cannot be nil")
	}
	if chat.ChatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	if chat.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	now := time.Now()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = now
	}

	_, err := r.session.Table(entity.TableNameChats).Insert(chat)
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

func (r *ChatRepository) Get(chatID string) (*entity.Chat, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat_id is required")
	}

	result := &entity.Chat{}
	ok, err := r.session.Table(entity.TableNameChats).
		Where(builder.Eq{entity.ChatsFieldChatID: chatID}).
		Get(result)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	if !ok {
		return nil, nil
	}

	return result, nil
}

func (r *ChatRepository) List(condition *model.GetChatsCondition) ([]*entity.Chat, int64, error) {
	if condition == nil {
		return nil, 0, fmt.Errorf("get condition cannot be nil")
	}

	var conds []builder.Cond
	if condition.UserID != nil && *condition.UserID != "" {
		conds = append(conds, builder.Eq{entity.ChatsFieldUserID: *condition.UserID})
	}

	countSession := r.session.Table(entity.TableNameChats)
	if len(conds) > 0 {
		countSession = countSession.Where(builder.And(conds...))
	}
	total, err := countSession.Count(&entity.Chat{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count chats: %w", err)
	}

	session := r.session.Table(entity.TableNameChats)
	if len(conds) > 0 {
		session = session.Where(builder.And(conds...))
	}
	pagerOrder(session, condition, WithDefaultOrderField(entity.ChatsFieldUpdatedAt))

	var results []*entity.Chat
	if err := session.Find(&results); err != nil {
		return nil, 0, fmt.Errorf("failed to list chats: %w", err)
	}

	return results, total, nil
}

func (r *ChatRepository) Update(chatID string, req *model.UpdateChatCondition) error {
	if chatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	if req == nil {
		return fmt.Errorf("update request cannot be nil")
	}

	updateData := map[string]interface{}{
		entity.ChatsFieldUpdatedAt: time.Now(),
	}
	if req.Name != nil {
		updateData[entity.ChatsFieldName] = *req.Name
	}
	if req.IsPublic != nil {
		updateData[entity.ChatsFieldIsPublic] = *req.IsPublic
	}

	_, err := r.session.Table(entity.TableNameChats).
		Where(builder.Eq{entity.ChatsFieldChatID: chatID}).
		Update(updateData)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	return nil
}
