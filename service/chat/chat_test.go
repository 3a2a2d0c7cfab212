package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare_assistant/constant"
	"healthcare_assistant/entity"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/graph"
	"healthcare_assistant/repository"
	"healthcare_assistant/repository/factory"
	"healthcare_assistant/repository/interfaces"
	"healthcare_assistant/service/profile"
)

// ==================== 内存版仓储，测试用 ====================

type memorySession struct{}

func (memorySession) Begin() error    { return nil }
func (memorySession) Close() error    { return nil }
func (memorySession) Commit() error   { return nil }
func (memorySession) Rollback() error { return nil }

type memoryFactory struct {
	mu            sync.Mutex
	chats         map[string]*entity.Chat
	profiles      map[string]string // namespace/user/key -> value
	lastListPager *model.Pager
}

func newMemoryFactory() *memoryFactory {
	return &memoryFactory{
		chats:    make(map[string]*entity.Chat),
		profiles: make(map[string]string),
	}
}

func (f *memoryFactory) NewSession(context.Context) interfaces.Session { return memorySession{} }

func (f *memoryFactory) NewChatRepository(interfaces.Session) (repository.ChatRepository, error) {
	return &memoryChatRepository{factory: f}, nil
}

func (f *memoryFactory) NewUserProfileRepository(interfaces.Session) (repository.UserProfileRepository, error) {
	return &memoryUserProfileRepository{factory: f}, nil
}

var _ factory.Factory = (*memoryFactory)(nil)

type memoryChatRepository struct {
	factory *memoryFactory
}

func (r *memoryChatRepository) Insert(chat *entity.Chat) error {
	r.factory.mu.Lock()
	defer r.factory.mu.Unlock()
	copied := *chat
	r.factory.chats[chat.ChatID] = &copied
	return nil
}

func (r *memoryChatRepository) Get(chatID string) (*entity.Chat, error) {
	r.factory.mu.Lock()
	defer r.factory.mu.Unlock()
	chat, ok := r.factory.chats[chatID]
	if !ok {
		return nil, nil
	}
	copied := *chat
	return &copied, nil
}

func (r *memoryChatRepository) List(condition *model.GetChatsCondition) ([]*entity.Chat, int64, error) {
	r.factory.mu.Lock()
	defer r.factory.mu.Unlock()
	r.factory.lastListPager = condition.Pager
	var result []*entity.Chat
	for _, chat := range r.factory.chats {
		if condition.UserID != nil && chat.UserID != *condition.UserID {
			continue
		}
		copied := *chat
		result = append(result, &copied)
	}
	return result, int64(len(result)), nil
}

func (r *memoryChatRepository) Update(chatID string, req *model.UpdateChatCondition) error {
	r.factory.mu.Lock()
	defer r.factory.mu.Unlock()
	chat, ok := r.factory.chats[chatID]
	if !ok {
		return fmt.Errorf("chat %s not found", chatID)
	}
	if req.Name != nil {
		chat.Name = *req.Name
	}
	if req.IsPublic != nil {
		chat.IsPublic = *req.IsPublic
	}
	return nil
}

type memoryUserProfileRepository struct {
	factory *memoryFactory
}

func profileKey(namespace, userID, key string) string {
	return namespace + "/" + userID + "/" + key
}

func (r *memoryUserProfileRepository) Upsert(req *model.UpsertUserProfileCondition) error {
	r.factory.mu.Lock()
	defer r.factory.mu.Unlock()
	r.factory.profiles[profileKey(req.Namespace, req.UserID, req.Key)] = req.Value
	return nil
}

func (r *memoryUserProfileRepository) Get(namespace, userID, key string) (*entity.UserProfile, error) {
	r.factory.mu.Lock()
	defer r.factory.mu.Unlock()
	value, ok := r.factory.profiles[profileKey(namespace, userID, key)]
	if !ok {
		return nil, nil
	}
	return &entity.UserProfile{Namespace: namespace, UserID: userID, Key: key, Value: value}, nil
}

// ==================== 测试替身 ====================

type scriptedCompleter struct {
	reply string
	calls int
	err   error
}

func (c *scriptedCompleter) CompleteContent(context.Context, []openai.ChatCompletionMessage) (string, error) {
	c.calls++
	return c.reply, c.err
}

type fixedHistory struct {
	state *graph.State
}

func (h *fixedHistory) History(context.Context, string) (*graph.State, *model.Error) {
	return h.state, nil
}

func newTestService(f *memoryFactory, completer Completer, history HistoryProvider) *Service {
	return NewService(f, profile.NewService(f, nil), completer, history, 0)
}

// ==================== 用例 ====================

func TestCreateChat(t *testing.T) {
	f := newMemoryFactory()
	service := newTestService(f, &scriptedCompleter{}, &fixedHistory{state: &graph.State{}})

	resp, modelErr := service.Create(context.Background(), "user-1", &model.NewChatRequest{
		Name:       "Alex",
		Age:        "30",
		Gender:     "male",
		Conditions: "asthma",
	})
	require.Nil(t, modelErr)
	require.NotEmpty(t, resp.ChatID)

	chat := f.chats[resp.ChatID]
	require.NotNil(t, chat)
	assert.Equal(t, "user-1", chat.UserID)
	assert.Equal(t, constant.DefaultChatName, chat.Name)
	assert.False(t, chat.IsPublic)

	// 建会话时画像已经落库
	raw := f.profiles[profileKey(constant.ProfileNamespace, "user-1", constant.ProfileKey)]
	require.NotEmpty(t, raw)
	stored := &model.UserProfile{}
	require.NoError(t, json.Unmarshal([]byte(raw), stored))
	assert.Equal(t, "Alex", stored.UserName)
	assert.Equal(t, 30, stored.Age)
	assert.Equal(t, []string{"asthma"}, stored.Conditions)
}

func TestCreateChatInvalidGender(t *testing.T) {
	service := newTestService(newMemoryFactory(), &scriptedCompleter{}, &fixedHistory{})

	_, modelErr := service.Create(context.Background(), "user-1", &model.NewChatRequest{
		Name:   "Alex",
		Age:    "30",
		Gender: "unspecified",
	})
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorParams, modelErr.Code)
}

func TestListOnlyOwnChats(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: "headache"}
	f.chats["c2"] = &entity.Chat{ChatID: "c2", UserID: "user-2", Name: "fever"}
	service := newTestService(f, &scriptedCompleter{}, &fixedHistory{})

	items, total, modelErr := service.List(context.Background(), "user-1", nil)
	require.Nil(t, modelErr)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "c1", items[0].ChatID)
}

func TestListDefaultsPager(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: "headache"}
	service := newTestService(f, &scriptedCompleter{}, &fixedHistory{})

	_, _, modelErr := service.List(context.Background(), "user-1", nil)
	require.Nil(t, modelErr)
	require.NotNil(t, f.lastListPager)
	assert.Equal(t, constant.DefaultPageLimit, f.lastListPager.Limit)
	assert.Equal(t, 0, f.lastListPager.Offset)
}

func TestTranscriptFiltersInternalMessages(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1"}

	state := &graph.State{}
	state.AppendMessages(
		model.NewUserMessage("I have a headache"),
		model.NewAssistantMessage("", []model.ToolCall{{ID: "t1", Name: constant.ToolRetrieve, Arguments: "{}"}}),
		model.NewToolMessage("t1", constant.ToolRetrieve, "Symptom: headache"),
		model.NewAssistantMessage("Does light make it worse?", nil),
	)
	service := newTestService(f, &scriptedCompleter{}, &fixedHistory{state: state})

	resp, modelErr := service.Transcript(context.Background(), "user-1", "c1")
	require.Nil(t, modelErr)

	// 工具调用与工具结果不回放给前端
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, constant.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, "Does light make it worse?", resp.Messages[1].Content)
}

func TestTranscriptAccessControl(t *testing.T) {
	f := newMemoryFactory()
	f.chats["private"] = &entity.Chat{ChatID: "private", UserID: "owner"}
	f.chats["public"] = &entity.Chat{ChatID: "public", UserID: "owner", IsPublic: true}
	service := newTestService(f, &scriptedCompleter{}, &fixedHistory{state: &graph.State{}})

	_, modelErr := service.Transcript(context.Background(), "stranger", "private")
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorForbidden, modelErr.Code)

	_, modelErr = service.Transcript(context.Background(), "stranger", "public")
	assert.Nil(t, modelErr)

	_, modelErr = service.Transcript(context.Background(), "stranger", "missing")
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorNotFound, modelErr.Code)
}

func TestUpdateVisibilityOwnerOnly(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "owner", IsPublic: true}
	service := newTestService(f, &scriptedCompleter{}, &fixedHistory{})

	modelErr := service.UpdateVisibility(context.Background(), "stranger", "c1", false)
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorForbidden, modelErr.Code)

	modelErr = service.UpdateVisibility(context.Background(), "owner", "c1", false)
	require.Nil(t, modelErr)
	assert.False(t, f.chats["c1"].IsPublic)
}

func TestMaybeNameShortChat(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: constant.DefaultChatName}
	completer := &scriptedCompleter{reply: "Severe Headache Consultation"}
	service := newTestService(f, completer, &fixedHistory{})

	state := &graph.State{}
	state.AppendMessages(
		model.NewUserMessage("I have a headache"),
		model.NewAssistantMessage("Tell me more", nil),
	)

	service.MaybeName(context.Background(), "c1", state)
	assert.Equal(t, 1, completer.calls)
	// 超过两个词时截断
	assert.Equal(t, "Severe Headache", f.chats["c1"].Name)
}

func TestMaybeNameSkipsLongChat(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: "existing name"}
	completer := &scriptedCompleter{reply: "New Name"}
	service := newTestService(f, completer, &fixedHistory{})

	state := &graph.State{}
	for i := 0; i < constant.DefaultNamingThreshold+1; i++ {
		state.AppendMessages(model.NewUserMessage(fmt.Sprintf("message %d", i)))
	}

	service.MaybeName(context.Background(), "c1", state)
	assert.Equal(t, 0, completer.calls)
	assert.Equal(t, "existing name", f.chats["c1"].Name)
}

func TestMaybeNameSkipsCompactedThread(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: "established name"}
	completer := &scriptedCompleter{reply: "Renamed Chat"}
	service := newTestService(f, completer, &fixedHistory{})

	// 长会话经过摘要压缩后，原始消息只剩 3 条，但累计计数仍然很大
	state := &graph.State{}
	for i := 0; i < 46; i++ {
		state.AppendMessages(model.NewUserMessage(fmt.Sprintf("message %d", i)))
	}
	state.KeepRecentMessages(2)
	state.AppendMessages(model.NewAssistantMessage("reply", nil))
	require.Len(t, state.Messages, 3)

	service.MaybeName(context.Background(), "c1", state)
	assert.Equal(t, 0, completer.calls)
	assert.Equal(t, "established name", f.chats["c1"].Name)
}

func TestMaybeNameFailureKeepsName(t *testing.T) {
	f := newMemoryFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: constant.DefaultChatName}
	completer := &scriptedCompleter{err: fmt.Errorf("model unavailable")}
	service := newTestService(f, completer, &fixedHistory{})

	state := &graph.State{}
	state.AppendMessages(model.NewUserMessage("hello"))

	service.MaybeName(context.Background(), "c1", state)
	assert.Equal(t, constant.DefaultChatName, f.chats["c1"].Name)
}
