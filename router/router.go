package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"healthcare_assistant/controller"
	"healthcare_assistant/middleware"
)

// New 组装 gin 引擎，所有控制器由外部构造后注入
func New(chatController *controller.ChatController, profileController *controller.ProfileController) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Logger, middleware.Identity)
	// 流式接口不压缩，避免 gzip 缓冲打断 SSE
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chat"})))

	addBasicRouter(engine)
	addApiRouter(engine, chatController, profileController)
	return engine
}
