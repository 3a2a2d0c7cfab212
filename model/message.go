package model

import (
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"healthcare_assistant/constant"
)

// ToolCall 助手消息里携带的工具调用请求
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON 字符串
}

// ChatMessage 对话中的一条消息，带 id 以支持摘要压缩时的定向删除
// 一旦追加就不再修改，只会在压缩时被批量删除
type ChatMessage struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"` // user / assistant / tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // role 为 tool 时对应的调用 id
	ToolName   string     `json:"tool_name,omitempty"`
}

// NewUserMessage 创建一条用户消息
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{
		ID:      uuid.NewString(),
		Role:    constant.RoleUser,
		Content: content,
	}
}

// NewAssistantMessage 创建一条助手消息
func NewAssistantMessage(content string, toolCalls []ToolCall) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      constant.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	}
}

// NewToolMessage 创建一条工具结果消息
func NewToolMessage(toolCallID, toolName, content string) ChatMessage {
	return ChatMessage{
		ID:         uuid.NewString(),
		Role:       constant.RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
	}
}

// IsFinalAssistant 是否为不带工具调用的最终助手回复
func (m ChatMessage) IsFinalAssistant() bool {
	return m.Role == constant.RoleAssistant && len(m.ToolCalls) == 0
}

// ToOpenAI 转换为 openai 消息格式
func (m ChatMessage) ToOpenAI() openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return msg
}

// ToOpenAIMessages 批量转换
func ToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		result = append(result, m.ToOpenAI())
	}
	return result
}
