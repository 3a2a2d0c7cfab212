package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"healthcare_assistant/constant"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/clients/llm_model"
	"healthcare_assistant/pkg/tools"
	"healthcare_assistant/repository/factory"
)

// Service 用户画像服务：读写画像、从开聊表单初始化、对话结束后增量提取
type Service struct {
	repositoryFactory factory.Factory
	llmClient         *llm_model.ClientChatModel
}

func NewService(repositoryFactory factory.Factory, llmClient *llm_model.ClientChatModel) *Service {
	return &Service{
		repositoryFactory: repositoryFactory,
		llmClient:         llmClient,
	}
}

// Get 读取用户画像，没有记录时返回 nil
func (s *Service) Get(ctx context.Context, userID string) (*model.UserProfile, *model.Error) {
	if userID == "" {
		return nil, model.NewError(model.ErrorEmptyId, fmt.Errorf("user id is required"))
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, err := s.repositoryFactory.NewUserProfileRepository(session)
	if err != nil {
		return nil, model.NewError(model.ErrorNewRepo, err)
	}

	record, err := repo.Get(constant.ProfileNamespace, userID, constant.ProfileKey)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if record == nil {
		return nil, nil
	}

	userProfile := &model.UserProfile{}
	if err := json.Unmarshal([]byte(record.Value), userProfile); err != nil {
		return nil, model.NewError(model.ErrorDB, fmt.Errorf("decode user profile: %w", err))
	}
	return userProfile, nil
}

// Save 覆盖写入用户画像
func (s *Service) Save(ctx context.Context, userID string, userProfile *model.UserProfile) *model.Error {
	if userID == "" {
		return model.NewError(model.ErrorEmptyId, fmt.Errorf("user id is required"))
	}
	if userProfile == nil {
		return model.NewError(model.ErrorParams, fmt.Errorf("user profile is required"))
	}

	raw, err := json.Marshal(userProfile)
	if err != nil {
		return model.NewError(model.ErrorParams, fmt.Errorf("encode user profile: %w", err))
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo, err := s.repositoryFactory.NewUserProfileRepository(session)
	if err != nil {
		return model.NewError(model.ErrorNewRepo, err)
	}

	if err := repo.Upsert(&model.UpsertUserProfileCondition{
		Namespace: constant.ProfileNamespace,
		UserID:    userID,
		Key:       constant.ProfileKey,
		Value:     string(raw),
	}); err != nil {
		return model.NewError(model.ErrorDB, err)
	}
	return nil
}

// FromIntakeForm 根据开聊表单构建初始画像
// 年龄解析失败时记 0，病史按逗号拆分，空表单字段保持空列表
func FromIntakeForm(req *model.NewChatRequest) *model.UserProfile {
	conditions := make([]string, 0)
	for _, c := range strings.Split(req.Conditions, ",") {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			conditions = append(conditions, trimmed)
		}
	}
	return &model.UserProfile{
		UserName:   strings.TrimSpace(req.Name),
		Age:        cast.ToInt(strings.TrimSpace(req.Age)),
		Gender:     model.Gender(strings.ToLower(strings.TrimSpace(req.Gender))),
		Conditions: conditions,
	}
}

// Reconcile 对话结束后让模型提取新信息并与现有画像合并
// 只补充和扩展，不会丢弃已有事实
func (s *Service) Reconcile(ctx context.Context, userID string, messages []model.ChatMessage) *model.Error {
	current, modelErr := s.Get(ctx, userID)
	if modelErr != nil {
		return modelErr
	}
	if current == nil {
		current = &model.UserProfile{Conditions: []string{}}
	}

	currentJSON, err := json.Marshal(current)
	if err != nil {
		return model.NewError(model.ErrorParams, fmt.Errorf("encode current profile: %w", err))
	}

	prompt := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf(constant.ProfileExtractSystemPromptTemplate, string(currentJSON)),
		},
	}
	prompt = append(prompt, model.ToOpenAIMessages(messages)...)

	content, err := s.llmClient.PostChatCompletionsJSONContent(ctx, prompt)
	if err != nil {
		return model.NewError(model.ErrorLLM, err)
	}

	extracted := &model.UserProfile{}
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), extracted); err != nil {
		log.Warnf("Unparseable profile extraction for user=%s: %v", userID, err)
		return nil
	}

	merged := Merge(current, extracted)
	return s.Save(ctx, userID, merged)
}

// Merge 合并画像：新值只在有内容时覆盖旧值，病史做保序并集
func Merge(current, extracted *model.UserProfile) *model.UserProfile {
	merged := &model.UserProfile{
		UserName:   current.UserName,
		Age:        current.Age,
		Gender:     current.Gender,
		Conditions: append([]string{}, current.Conditions...),
	}
	if merged.Conditions == nil {
		merged.Conditions = []string{}
	}

	if extracted.UserName != "" {
		merged.UserName = extracted.UserName
	}
	if extracted.Age > 0 {
		merged.Age = extracted.Age
	}
	if extracted.Gender.IsValid() {
		merged.Gender = extracted.Gender
	}

	seen := make(map[string]bool, len(merged.Conditions))
	for _, c := range merged.Conditions {
		seen[strings.ToLower(c)] = true
	}
	for _, c := range extracted.Conditions {
		trimmed := strings.TrimSpace(c)
		if trimmed == "" || seen[strings.ToLower(trimmed)] {
			continue
		}
		seen[strings.ToLower(trimmed)] = true
		merged.Conditions = append(merged.Conditions, trimmed)
	}
	return merged
}

// cleanJSONResponse 去掉模型回复里可能带的 markdown 代码块标记
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
