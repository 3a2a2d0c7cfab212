package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare_assistant/constant"
	"healthcare_assistant/entity"
	"healthcare_assistant/middleware"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/clients/httptool"
	"healthcare_assistant/pkg/clients/llm_model"
	"healthcare_assistant/pkg/graph"
	"healthcare_assistant/pkg/vectorstore"
	"healthcare_assistant/repository"
	"healthcare_assistant/repository/factory"
	"healthcare_assistant/repository/interfaces"
	"healthcare_assistant/service/assistant"
	"healthcare_assistant/service/chat"
	"healthcare_assistant/service/profile"
)

// ==================== 内存版仓储，测试用 ====================

type stubSession struct{}

func (stubSession) Begin() error    { return nil }
func (stubSession) Close() error    { return nil }
func (stubSession) Commit() error   { return nil }
func (stubSession) Rollback() error { return nil }

type stubFactory struct {
	chats    map[string]*entity.Chat
	profiles map[string]string
}

func newStubFactory() *stubFactory {
	return &stubFactory{
		chats:    make(map[string]*entity.Chat),
		profiles: make(map[string]string),
	}
}

func (f *stubFactory) NewSession(context.Context) interfaces.Session { return stubSession{} }

func (f *stubFactory) NewChatRepository(interfaces.Session) (repository.ChatRepository, error) {
	return &stubChatRepository{factory: f}, nil
}

func (f *stubFactory) NewUserProfileRepository(interfaces.Session) (repository.UserProfileRepository, error) {
	return &stubProfileRepository{factory: f}, nil
}

var _ factory.Factory = (*stubFactory)(nil)

type stubChatRepository struct {
	factory *stubFactory
}

func (r *stubChatRepository) Insert(c *entity.Chat) error {
	r.factory.chats[c.ChatID] = c
	return nil
}

func (r *stubChatRepository) Get(chatID string) (*entity.Chat, error) {
	return r.factory.chats[chatID], nil
}

func (r *stubChatRepository) List(condition *model.GetChatsCondition) ([]*entity.Chat, int64, error) {
	var result []*entity.Chat
	for _, c := range r.factory.chats {
		if condition.UserID != nil && c.UserID != *condition.UserID {
			continue
		}
		result = append(result, c)
	}
	return result, int64(len(result)), nil
}

func (r *stubChatRepository) Update(chatID string, req *model.UpdateChatCondition) error {
	c, ok := r.factory.chats[chatID]
	if !ok {
		return errors.New("chat not found")
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.IsPublic != nil {
		c.IsPublic = *req.IsPublic
	}
	return nil
}

type stubProfileRepository struct {
	factory *stubFactory
}

func (r *stubProfileRepository) Upsert(req *model.UpsertUserProfileCondition) error {
	r.factory.profiles[req.Namespace+"/"+req.UserID+"/"+req.Key] = req.Value
	return nil
}

func (r *stubProfileRepository) Get(namespace, userID, key string) (*entity.UserProfile, error) {
	value, ok := r.factory.profiles[namespace+"/"+userID+"/"+key]
	if !ok {
		return nil, nil
	}
	return &entity.UserProfile{Namespace: namespace, UserID: userID, Key: key, Value: value}, nil
}

// ==================== 测试替身 ====================

type stubReasoner struct {
	reply     string
	streamErr error
}

func (r *stubReasoner) StreamWithTools(_ context.Context, _ []openai.ChatCompletionMessage, _ []openai.Tool, onDelta llm_model.StreamDelta) (string, []openai.ToolCall, error) {
	if r.streamErr != nil {
		return "", nil, r.streamErr
	}
	if onDelta != nil {
		onDelta(r.reply)
	}
	return r.reply, nil, nil
}

func (r *stubReasoner) CompleteContent(context.Context, []openai.ChatCompletionMessage) (string, error) {
	return r.reply, nil
}

type stubRetriever struct{}

func (stubRetriever) SimilaritySearch(context.Context, string) (*vectorstore.SymptomRecord, error) {
	return nil, nil
}

type stubProfiles struct {
	reconcileErr *model.Error
}

func (stubProfiles) Get(context.Context, string) (*model.UserProfile, *model.Error) {
	return nil, nil
}

func (p stubProfiles) Reconcile(context.Context, string, []model.ChatMessage) *model.Error {
	return p.reconcileErr
}

func newTestEngine(t *testing.T, f *stubFactory, reasoner assistant.Reasoner, profiles assistant.ProfileStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	assistantService, err := assistant.NewService(reasoner, stubRetriever{}, profiles, graph.NewMemoryCheckpointer(), assistant.Options{})
	require.NoError(t, err)
	chatService := chat.NewService(f, profile.NewService(f, nil), reasoner, assistantService, 0)

	engine := gin.New()
	engine.Use(middleware.Identity)
	controller := NewChatController(chatService, assistantService)
	engine.POST("/api/v1/chat", controller.ChatTurn)
	return engine
}

func postChatTurn(engine *gin.Engine, userID, chatID, message string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(&model.ChatTurnRequest{ChatID: chatID, Message: message})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: middleware.UserIDCookie, Value: userID})
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func TestChatTurnStreamsEvents(t *testing.T) {
	f := newStubFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: "new chat"}
	engine := newTestEngine(t, f, &stubReasoner{reply: "What symptoms are you experiencing?"}, stubProfiles{})

	recorder := postChatTurn(engine, "user-1", "c1", "hi")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, httptool.HeaderContentTypeStream, recorder.Header().Get(httptool.HeaderContentType))

	frames := decodeStreamFrames(t, recorder.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, constant.StreamEventAssistant, frames[0].Kind)
	last := frames[len(frames)-1]
	assert.Equal(t, constant.StreamEventDone, last.Kind)
	assert.Empty(t, last.Content)
}

func TestChatTurnErrorBeforeStreamIsPlainJSON(t *testing.T) {
	f := newStubFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: "new chat"}
	engine := newTestEngine(t, f, &stubReasoner{streamErr: errors.New("model unavailable")}, stubProfiles{})

	recorder := postChatTurn(engine, "user-1", "c1", "hi")

	// 第一条事件之前失败时要回普通 JSON 错误，不能是事件流
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Header().Get(httptool.HeaderContentType), "text/event-stream")

	modelErr := &model.Error{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), modelErr))
	assert.Equal(t, model.ErrorLLM, modelErr.Code)
}

func TestChatTurnDoneFrameCarriesProfileWarning(t *testing.T) {
	f := newStubFactory()
	f.chats["c1"] = &entity.Chat{ChatID: "c1", UserID: "user-1", Name: "new chat"}
	profiles := stubProfiles{reconcileErr: model.NewErrorWithMessage(model.ErrorDB, "upsert failed")}
	engine := newTestEngine(t, f, &stubReasoner{reply: "Noted."}, profiles)

	recorder := postChatTurn(engine, "user-1", "c1", "hi")

	assert.Equal(t, http.StatusOK, recorder.Code)
	frames := decodeStreamFrames(t, recorder.Body.String())
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, constant.StreamEventDone, last.Kind)
	assert.Contains(t, last.Content, "profile update failed")
}

func decodeStreamFrames(t *testing.T, body string) []*model.StreamEvent {
	t.Helper()
	var frames []*model.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		event := &model.StreamEvent{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), event))
		frames = append(frames, event)
	}
	return frames
}
