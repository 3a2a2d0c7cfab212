package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthcare_assistant/controller"
)

func addBasicRouter(engine *gin.Engine) {
	engine.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func addApiRouter(engine *gin.Engine, chatController *controller.ChatController, profileController *controller.ProfileController) {

	// 会话相关 API
	api := engine.Group("/api/v1")
	{
		// 会话管理
		api.POST("/new-chat", chatController.NewChat)
		api.GET("/user-chats", chatController.ListChats)
		api.GET("/chat/:chat_id", chatController.GetChat)
		api.PATCH("/chat/:chat_id/visibility", chatController.UpdateVisibility)

		// 问诊对话（SSE 流式）
		api.POST("/chat", chatController.ChatTurn)

		// 用户画像
		api.GET("/profile", profileController.GetProfile)
	}
}
