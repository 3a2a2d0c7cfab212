package assistant

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"healthcare_assistant/model"
	"healthcare_assistant/pkg/clients/llm_model"
)

// Reasoner 对话模型的最小接口，节点只依赖这三种调用方式
type Reasoner interface {
	// StreamWithTools 流式补全，返回最终文本与工具调用
	StreamWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, toolDefs []openai.Tool, onDelta llm_model.StreamDelta) (string, []openai.ToolCall, error)
	// CompleteContent 非流式补全，只要文本
	CompleteContent(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// ProfileStore 用户画像的读取与写回
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*model.UserProfile, *model.Error)
	Reconcile(ctx context.Context, userID string, messages []model.ChatMessage) *model.Error
}

type llmReasoner struct {
	client *llm_model.ClientChatModel
}

// NewLLMReasoner 用聊天模型客户端实现 Reasoner
func NewLLMReasoner(client *llm_model.ClientChatModel) Reasoner {
	return &llmReasoner{client: client}
}

func (r *llmReasoner) StreamWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, toolDefs []openai.Tool, onDelta llm_model.StreamDelta) (string, []openai.ToolCall, error) {
	return r.client.PostChatCompletionsStreamWithTools(ctx, messages, toolDefs, onDelta)
}

func (r *llmReasoner) CompleteContent(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	return r.client.PostChatCompletionsNonStreamContent(ctx, messages)
}
