package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"healthcare_assistant/constant"
	"healthcare_assistant/entity"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/graph"
	"healthcare_assistant/pkg/tools"
	"healthcare_assistant/repository/factory"
	"healthcare_assistant/service/profile"
)

// Completer 非流式文本补全，会话命名用
type Completer interface {
	CompleteContent(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// HistoryProvider 会话历史读取
type HistoryProvider interface {
	History(ctx context.Context, chatID string) (*graph.State, *model.Error)
}

// Service 会话元数据服务：建会话、列表、记录回放、可见性、自动命名
type Service struct {
	repositoryFactory factory.Factory
	profileService    *profile.Service
	completer         Completer
	history           HistoryProvider
	namingThreshold   int
}

func NewService(repositoryFactory factory.Factory, profileService *profile.Service, completer Completer, history HistoryProvider, namingThreshold int) *Service {
	if namingThreshold <= 0 {
		namingThreshold = constant.DefaultNamingThreshold
	}
	return &Service{
		repositoryFactory: repositoryFactory,
		profileService:    profileService,
		completer:         completer,
		history:           history,
		namingThreshold:   namingThreshold,
	}
}

// Create 根据问诊表单建会话并初始化用户画像
func (s *Service) Create(ctx context.Context, userID string, req *model.NewChatRequest) (*model.NewChatResponse, *model.Error) {
	if userID == "" {
		return nil, model.NewError(model.ErrorEmptyId, fmt.Errorf("user id is required"))
	}

	userProfile := profile.FromIntakeForm(req)
	if !userProfile.Gender.IsValid() {
		return nil, model.NewError(model.ErrorParams, fmt.Errorf("gender must be male, female or other, got %q", req.Gender))
	}

	chatID := uuid.NewString()

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, err := s.repositoryFactory.NewChatRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}

	if err := repo.Insert(&entity.Chat{
		ChatID:   chatID,
		UserID:   userID,
		IsPublic: req.IsPublic,
		Name:     constant.DefaultChatName,
	}); err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}

	if modelErr := s.profileService.Save(ctx, userID, userProfile); modelErr != nil {
		return nil, modelErr
	}

	log.Infof("Created chat=%s for user=%s", chatID, userID)
	return &model.NewChatResponse{ChatID: chatID}, nil
}

// List 返回用户自己的会话列表，不传分页时按默认条数取第一页
func (s *Service) List(ctx context.Context, userID string, pager *model.Pager) ([]*model.ChatListItem, int64, *model.Error) {
	if userID == "" {
		return nil, 0, model.NewError(model.ErrorEmptyId, fmt.Errorf("user id is required"))
	}
	if pager == nil {
		pager = &model.Pager{Limit: constant.DefaultPageLimit}
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, err := s.repositoryFactory.NewChatRepository(session)
	if err != nil {
		return nil, 0, model.NewError(model.ErrorNewRepo, err)
	}

	chats, total, err := repo.List(&model.GetChatsCondition{
		UserID: &userID,
		Pager:  pager,
	})
	if err != nil {
		return nil, 0, model.NewError(model.ErrorDB, err)
	}

	items := make([]*model.ChatListItem, 0, len(chats))
	for _, c := range chats {
		items = append(items, &model.ChatListItem{ChatID: c.ChatID, Name: c.Name})
	}
	return items, total, nil
}

// Authorize 读取会话并做访问控制：公开会话任何人可读，私有会话仅属主可读
func (s *Service) Authorize(ctx context.Context, userID, chatID string) (*entity.Chat, *model.Error) {
	record, modelErr := s.get(ctx, chatID)
	if modelErr != nil {
		return nil, modelErr
	}
	if !record.IsPublic && record.UserID != userID {
		return nil, model.NewError(model.ErrorForbidden, fmt.Errorf("chat %s is private", chatID))
	}
	return record, nil
}

// AuthorizeOwner 仅属主可操作的访问控制
func (s *Service) AuthorizeOwner(ctx context.Context, userID, chatID string) (*entity.Chat, *model.Error) {
	record, modelErr := s.get(ctx, chatID)
	if modelErr != nil {
		return nil, modelErr
	}
	if record.UserID != userID {
		return nil, model.NewError(model.ErrorForbidden, fmt.Errorf("chat %s does not belong to user", chatID))
	}
	return record, nil
}

// Transcript 回放会话记录，只保留用户消息和最终助手回复
func (s *Service) Transcript(ctx context.Context, userID, chatID string) (*model.TranscriptResponse, *model.Error) {
	if _, modelErr := s.Authorize(ctx, userID, chatID); modelErr != nil {
		return nil, modelErr
	}

	state, modelErr := s.history.History(ctx, chatID)
	if modelErr != nil {
		return nil, modelErr
	}

	messages := make([]model.TranscriptMessage, 0, len(state.Messages))
	for _, m := range state.Messages {
		if m.Role == constant.RoleUser || m.IsFinalAssistant() {
			messages = append(messages, model.TranscriptMessage{Role: m.Role, Content: m.Content})
		}
	}
	return &model.TranscriptResponse{ID: chatID, Messages: messages}, nil
}

// UpdateVisibility 切换会话公开状态，仅属主可操作
func (s *Service) UpdateVisibility(ctx context.Context, userID, chatID string, isPublic bool) *model.Error {
	if _, modelErr := s.AuthorizeOwner(ctx, userID, chatID); modelErr != nil {
		return modelErr
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, err := s.repositoryFactory.NewChatRepository(session)
	if err != nil {
		return model.NewError(model.ErrorNewRepo, err)
	}

	if err := repo.Update(chatID, &model.UpdateChatCondition{IsPublic: &isPublic}); err != nil {
		return model.NewError(model.ErrorDB, err)
	}
	return nil
}

// MaybeName 会话还短时让模型起一个不超过两个词的名字
// 按线程累计消息数判断长短，摘要压缩不会让老会话重新触发命名
// 命名失败只记日志，不影响对话本身
func (s *Service) MaybeName(ctx context.Context, chatID string, state *graph.State) {
	if state == nil || state.TotalMessages == 0 || state.TotalMessages > s.namingThreshold {
		return
	}

	name, err := s.suggestName(ctx, state)
	if err != nil {
		log.Warnf("Naming chat=%s failed: %v", chatID, err)
		return
	}
	if name == "" {
		return
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, repoErr := s.repositoryFactory.NewChatRepository(session)
	if repoErr != nil {
		log.Warnf("Naming chat=%s failed: %v", chatID, repoErr)
		return
	}

	if err := repo.Update(chatID, &model.UpdateChatCondition{Name: &name}); err != nil {
		log.Warnf("Naming chat=%s failed: %v", chatID, err)
	}
}

// suggestName 用对话内容生成会话名，超过两个词时截断
func (s *Service) suggestName(ctx context.Context, state *graph.State) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: constant.ChatNamingSystemPrompt},
	}
	messages = append(messages, model.ToOpenAIMessages(state.Messages)...)

	name, err := s.completer.CompleteContent(ctx, messages)
	if err != nil {
		return "", err
	}

	words := strings.Fields(strings.Trim(strings.TrimSpace(name), `"'`))
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " "), nil
}

func (s *Service) get(ctx context.Context, chatID string) (*entity.Chat, *model.Error) {
	if chatID == "" {
		return nil, model.NewError(model.ErrorEmptyId, fmt.Errorf("chat id is required"))
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, err := s.repositoryFactory.NewChatRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}

	record, err := repo.Get(chatID)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if record == nil {
		return nil, model.NewError(model.ErrorNotFound, fmt.Errorf("chat %s not found", chatID))
	}
	return record, nil
}

// Touch 更新会话的最后活跃时间
func (s *Service) Touch(ctx context.Context, chatID string) {
	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, err := s.repositoryFactory.NewChatRepository(session)
	if err != nil {
		log.Warnf("Touch chat=%s failed: %v", chatID, err)
		return
	}

	if err := repo.Update(chatID, &model.UpdateChatCondition{}); err != nil {
		log.Warnf("Touch chat=%s failed: %v", chatID, err)
	}
}
