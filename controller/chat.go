package controller

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"healthcare_assistant/constant"
	"healthcare_assistant/middleware"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/clients/httptool"
	"healthcare_assistant/service/assistant"
	"healthcare_assistant/service/chat"
)

// ChatController 会话相关接口
type ChatController struct {
	chatService      *chat.Service
	assistantService *assistant.Service
}

func NewChatController(chatService *chat.Service, assistantService *assistant.Service) *ChatController {
	return &ChatController{
		chatService:      chatService,
		assistantService: assistantService,
	}
}

// NewChat 新建会话
// @Description 根据问诊表单新建会话，首次访问时种下身份 cookie
// @Param body model.NewChatRequest
// @Success model.NewChatResponse
func (c *ChatController) NewChat(ctx *gin.Context) {
	req := &model.NewChatRequest{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.EnsureUserID(ctx)

	resp, modelErr := c.chatService.Create(ctx, userID, req)
	if modelErr != nil {
		abortWithError(ctx, modelErr)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListChats 当前用户的会话列表
// @Param limit query 每页条数，缺省 10
// @Param offset query 偏移量
// @Success {chats, total}
func (c *ChatController) ListChats(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		// 没有身份 cookie 的访客还没有任何会话
		ctx.JSON(http.StatusOK, gin.H{"chats": []*model.ChatListItem{}, "total": 0})
		return
	}

	pager := &model.Pager{
		Limit:  cast.ToInt(ctx.Query("limit")),
		Offset: cast.ToInt(ctx.Query("offset")),
	}
	if pager.Limit <= 0 {
		pager.Limit = constant.DefaultPageLimit
	}

	items, total, modelErr := c.chatService.List(ctx, userID, pager)
	if modelErr != nil {
		abortWithError(ctx, modelErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"chats": items, "total": total})
}

// ChatTurn 发送一条消息并以 SSE 流式返回本轮全部事件
// @Description 事件按 data: {json}\n\n 逐条下发，最后一条是 done
// @Param body model.ChatTurnRequest
func (c *ChatController) ChatTurn(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		abortWithError(ctx, model.NewErrorWithMessage(model.ErrorUnauthorized, model.ErrorMessages[model.ErrorUnauthorized]))
		return
	}

	req := &model.ChatTurnRequest{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 只有属主能继续对话
	if _, modelErr := c.chatService.AuthorizeOwner(ctx, userID, req.ChatID); modelErr != nil {
		abortWithError(ctx, modelErr)
		return
	}

	// 流式响应头推迟到第一条事件之前再写，出错早的请求还能回普通 JSON
	flusher, _ := ctx.Writer.(http.Flusher)
	streaming := false
	beginStream := func() {
		if streaming {
			return
		}
		streaming = true
		ctx.Header(httptool.HeaderContentType, httptool.HeaderContentTypeStream)
		ctx.Header(httptool.HeaderContentCache, httptool.HeaderContentCacheNo)
		ctx.Header(httptool.HeaderContentConnection, httptool.HeaderContentKeepAlive)
		ctx.Header(httptool.HeaderContentTransfer, httptool.HeaderContentChunked)
	}
	emit := func(event *model.StreamEvent) {
		beginStream()
		writeStreamEvent(ctx, flusher, event)
	}

	state, modelErr := c.assistantService.Converse(ctx, userID, req.ChatID, req.Message, emit)
	if modelErr != nil {
		// 还没吐出任何事件时可以退回普通 JSON 错误
		if !streaming {
			abortWithError(ctx, modelErr)
			return
		}
		log.Errorf("Chat turn chat=%s failed mid-stream: %v", req.ChatID, modelErr)
		writeStreamEvent(ctx, flusher, &model.StreamEvent{
			Kind:    constant.StreamEventDone,
			Content: modelErr.Message,
		})
		return
	}

	// 本轮结束：尝试命名、刷新活跃时间，然后收尾
	c.chatService.MaybeName(ctx, req.ChatID, state)
	c.chatService.Touch(ctx, req.ChatID)

	beginStream()
	writeStreamEvent(ctx, flusher, &model.StreamEvent{
		Kind:    constant.StreamEventDone,
		Content: strings.Join(state.Warnings, "; "),
	})
}

// GetChat 会话记录回放
// @Success model.TranscriptResponse
func (c *ChatController) GetChat(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	chatID := ctx.Param("chat_id")

	resp, modelErr := c.chatService.Transcript(ctx, userID, chatID)
	if modelErr != nil {
		abortWithError(ctx, modelErr)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// UpdateVisibility 切换会话公开状态
// @Param body {is_public}
func (c *ChatController) UpdateVisibility(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		abortWithError(ctx, model.NewErrorWithMessage(model.ErrorUnauthorized, model.ErrorMessages[model.ErrorUnauthorized]))
		return
	}

	req := &struct {
		IsPublic *bool `json:"is_public" binding:"required"`
	}{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if modelErr := c.chatService.UpdateVisibility(ctx, userID, ctx.Param("chat_id"), *req.IsPublic); modelErr != nil {
		abortWithError(ctx, modelErr)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func writeStreamEvent(ctx *gin.Context, flusher http.Flusher, event *model.StreamEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Encode stream event failed: %v", err)
		return
	}
	if _, err := ctx.Writer.Write(append(append([]byte("data: "), raw...), '\n', '\n')); err != nil {
		log.Warnf("Write stream event failed: %v", err)
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}
