package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare_assistant/constant"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/clients/llm_model"
	"healthcare_assistant/pkg/graph"
	"healthcare_assistant/pkg/vectorstore"
)

type streamReply struct {
	content   string
	toolCalls []openai.ToolCall
}

// scriptedReasoner 预先写好的模型回复序列，按调用顺序依次弹出
type scriptedReasoner struct {
	streamReplies []streamReply
	completions   []string
	streamIdx     int
	completeIdx   int
}

func (r *scriptedReasoner) StreamWithTools(_ context.Context, _ []openai.ChatCompletionMessage, _ []openai.Tool, onDelta llm_model.StreamDelta) (string, []openai.ToolCall, error) {
	if r.streamIdx >= len(r.streamReplies) {
		return "", nil, fmt.Errorf("unexpected stream call %d", r.streamIdx)
	}
	reply := r.streamReplies[r.streamIdx]
	r.streamIdx++
	if onDelta != nil && reply.content != "" {
		onDelta(reply.content)
	}
	return reply.content, reply.toolCalls, nil
}

func (r *scriptedReasoner) CompleteContent(context.Context, []openai.ChatCompletionMessage) (string, error) {
	if r.completeIdx >= len(r.completions) {
		return "", fmt.Errorf("unexpected completion call %d", r.completeIdx)
	}
	reply := r.completions[r.completeIdx]
	r.completeIdx++
	return reply, nil
}

type fakeRetriever struct {
	record *vectorstore.SymptomRecord
}

func (f *fakeRetriever) SimilaritySearch(context.Context, string) (*vectorstore.SymptomRecord, error) {
	return f.record, nil
}

type fakeProfiles struct {
	stored       *model.UserProfile
	reconciles   int
	reconcileErr *model.Error
}

func (f *fakeProfiles) Get(context.Context, string) (*model.UserProfile, *model.Error) {
	return f.stored, nil
}

func (f *fakeProfiles) Reconcile(_ context.Context, _ string, _ []model.ChatMessage) *model.Error {
	f.reconciles++
	return f.reconcileErr
}

func toolCall(id, name string, args interface{}) openai.ToolCall {
	raw, _ := json.Marshal(args)
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: string(raw),
		},
	}
}

func TestConverseWithToolRoundTrip(t *testing.T) {
	reasoner := &scriptedReasoner{
		streamReplies: []streamReply{
			{toolCalls: []openai.ToolCall{toolCall("call-1", constant.ToolRetrieve, map[string]string{"query": "cephalalgia"})}},
			{content: "Do your headaches worsen with light?"},
		},
	}
	retriever := &fakeRetriever{record: &vectorstore.SymptomRecord{
		Symptom:           "headache",
		Conditions:        "migraine, tension headache",
		FollowUpQuestions: []string{"Does light make it worse?"},
	}}
	profiles := &fakeProfiles{stored: &model.UserProfile{UserName: "Alex", Age: 30, Gender: model.GenderMale, Conditions: []string{}}}

	service, err := NewService(reasoner, retriever, profiles, graph.NewMemoryCheckpointer(), Options{})
	require.NoError(t, err)

	var events []*model.StreamEvent
	state, modelErr := service.Converse(context.Background(), "user-1", "chat-1", "I have a headache", func(e *model.StreamEvent) {
		events = append(events, e)
	})
	require.Nil(t, modelErr)

	// user -> assistant(带工具调用) -> tool -> assistant(最终回复)
	require.Len(t, state.Messages, 4)
	assert.Equal(t, constant.RoleUser, state.Messages[0].Role)
	require.Len(t, state.Messages[1].ToolCalls, 1)
	assert.Equal(t, constant.ToolRetrieve, state.Messages[1].ToolCalls[0].Name)
	assert.Equal(t, constant.RoleTool, state.Messages[2].Role)
	assert.Contains(t, state.Messages[2].Content, "Symptom: headache")
	assert.Equal(t, "Do your headaches worsen with light?", state.Messages[3].Content)
	assert.True(t, state.Messages[3].IsFinalAssistant())

	// 工具事件夹在两段助手输出之间
	require.Len(t, events, 2)
	assert.Equal(t, constant.StreamEventTool, events[0].Kind)
	assert.Equal(t, constant.ToolRetrieve, events[0].Node)
	assert.Equal(t, constant.StreamEventAssistant, events[1].Kind)

	// 回合结束后画像写回恰好一次
	assert.Equal(t, 1, profiles.reconciles)
}

func TestConverseCompactsLongHistory(t *testing.T) {
	reasoner := &scriptedReasoner{
		completions:   []string{"User reported recurring headaches over two weeks."},
		streamReplies: []streamReply{{content: "Noted. Any other symptoms?"}},
	}
	profiles := &fakeProfiles{}

	checkpointer := graph.NewMemoryCheckpointer()
	seed := &graph.State{}
	for i := 0; i < 6; i++ {
		seed.AppendMessages(model.NewUserMessage(fmt.Sprintf("message %d", i)))
	}
	require.NoError(t, checkpointer.Put(context.Background(), "chat-1", seed))

	service, err := NewService(reasoner, &fakeRetriever{}, profiles, checkpointer, Options{
		SummarizeThreshold: 5,
		KeepRecentMessages: 2,
	})
	require.NoError(t, err)

	var events []*model.StreamEvent
	state, modelErr := service.Converse(context.Background(), "user-1", "chat-1", "still hurting", func(e *model.StreamEvent) {
		events = append(events, e)
	})
	require.Nil(t, modelErr)

	// 压缩后只剩最近 2 条，再加本轮助手回复
	assert.Equal(t, "User reported recurring headaches over two weeks.", state.Summary)
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "still hurting", state.Messages[1].Content)
	assert.Equal(t, "Noted. Any other symptoms?", state.Messages[2].Content)

	require.NotEmpty(t, events)
	assert.Equal(t, constant.StreamEventSummary, events[0].Kind)
}

func TestConverseShortHistorySkipsSummary(t *testing.T) {
	reasoner := &scriptedReasoner{
		streamReplies: []streamReply{{content: "Hello, what symptoms are you experiencing?"}},
	}
	service, err := NewService(reasoner, &fakeRetriever{}, &fakeProfiles{}, graph.NewMemoryCheckpointer(), Options{})
	require.NoError(t, err)

	state, modelErr := service.Converse(context.Background(), "user-1", "chat-1", "hi", nil)
	require.Nil(t, modelErr)

	assert.Empty(t, state.Summary)
	assert.Len(t, state.Messages, 2)
}

func TestConverseSurfacesProfileWriteFailure(t *testing.T) {
	reasoner := &scriptedReasoner{
		streamReplies: []streamReply{{content: "Got it, tell me more."}},
	}
	profiles := &fakeProfiles{reconcileErr: model.NewError(model.ErrorLLM, fmt.Errorf("extract timed out"))}
	service, err := NewService(reasoner, &fakeRetriever{}, profiles, graph.NewMemoryCheckpointer(), Options{})
	require.NoError(t, err)

	state, modelErr := service.Converse(context.Background(), "user-1", "chat-1", "hi", nil)
	require.Nil(t, modelErr)

	// 画像写回失败不让本轮失败，但要作为告警带回去
	require.Len(t, state.Warnings, 1)
	assert.Contains(t, state.Warnings[0], "profile update failed")
	assert.Equal(t, 1, profiles.reconciles)
}

func TestConverseValidation(t *testing.T) {
	service, err := NewService(&scriptedReasoner{}, &fakeRetriever{}, &fakeProfiles{}, graph.NewMemoryCheckpointer(), Options{})
	require.NoError(t, err)

	_, modelErr := service.Converse(context.Background(), "", "chat-1", "hi", nil)
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorEmptyId, modelErr.Code)

	_, modelErr = service.Converse(context.Background(), "user-1", "chat-1", "", nil)
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorParams, modelErr.Code)
}

func TestRetrieveToolNoHit(t *testing.T) {
	service, err := NewService(&scriptedReasoner{}, &fakeRetriever{record: nil}, &fakeProfiles{}, graph.NewMemoryCheckpointer(), Options{})
	require.NoError(t, err)

	result, err := service.runRetrieve(context.Background(), `{"query":"unknown"}`)
	require.NoError(t, err)
	assert.Equal(t, constant.NoRelevantDocumentsFound, result)
}

func TestDispatchUnknownTool(t *testing.T) {
	service, err := NewService(&scriptedReasoner{}, &fakeRetriever{}, &fakeProfiles{}, graph.NewMemoryCheckpointer(), Options{})
	require.NoError(t, err)

	result := service.dispatchTool(context.Background(), model.ToolCall{ID: "c1", Name: "rm_rf", Arguments: "{}"})
	assert.Contains(t, result, "unknown tool")
}
