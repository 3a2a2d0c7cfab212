package model

import "healthcare_assistant/constant"

// NewChatRequest 新建会话请求（问诊表单）
type NewChatRequest struct {
	IsPublic   bool   `json:"is_public"`
	Name       string `json:"name" binding:"required"`
	Age        string `json:"age" binding:"required"`
	Gender     string `json:"gender" binding:"required"`
	Conditions string `json:"conditions"` // 逗号分隔的既往病史，可为空
}

// NewChatResponse 新建会话响应
type NewChatResponse struct {
	ChatID string `json:"chatId"`
}

// ChatTurnRequest 发送消息请求
type ChatTurnRequest struct {
	ChatID  string `json:"chat_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// ChatListItem 会话列表项
type ChatListItem struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
}

// TranscriptMessage 会话记录里返回给前端的一条消息
type TranscriptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TranscriptResponse 会话记录响应
type TranscriptResponse struct {
	ID       string              `json:"id"`
	Messages []TranscriptMessage `json:"messages"`
}

// StreamEvent 流式返回给客户端的一个片段
type StreamEvent struct {
	Kind    constant.StreamEventKind `json:"kind"` // assistant / tool / summary / done
	Node    string                   `json:"node,omitempty"`
	Content string                   `json:"content,omitempty"`
}

// UpdateChatCondition 会话元数据更新条件
type UpdateChatCondition struct {
	Name     *string `json:"name"`
	IsPublic *bool   `json:"is_public"`
}

// GetChatsCondition 会话查询条件（带分页和排序）
type GetChatsCondition struct {
	UserID *string `json:"user_id"`
	*Pager
	*Order
}

func (g *GetChatsCondition) GetPager() *Pager {
	return g.Pager
}

func (g *GetChatsCondition) GetOrder() *Order {
	return g.Order
}
