package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// UserIDCookie 匿名用户身份 cookie
	UserIDCookie = "userId"
	// GinContextUserIDKey gin 上下文里的用户 id key
	GinContextUserIDKey = "userId"

	cookieMaxAge = 60 * 60 * 24 * 365
)

// Identity 从 cookie 里读匿名用户 id 放进上下文，没有就留空
func Identity(ctx *gin.Context) {
	if userID, err := ctx.Cookie(UserIDCookie); err == nil && userID != "" {
		ctx.Set(GinContextUserIDKey, userID)
	}
	ctx.Next()
}

// UserID 取当前请求的用户 id，未登录返回空串
func UserID(ctx *gin.Context) string {
	userID, _ := ctx.Value(GinContextUserIDKey).(string)
	return userID
}

// EnsureUserID 取当前用户 id，没有时生成一个并种 cookie
func EnsureUserID(ctx *gin.Context) string {
	if userID := UserID(ctx); userID != "" {
		return userID
	}
	userID := uuid.NewString()
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(UserIDCookie, userID, cookieMaxAge, "/", "", false, true)
	ctx.Set(GinContextUserIDKey, userID)
	return userID
}
