package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthcare_assistant/model"
)

// statusOf 业务错误码到 HTTP 状态码的映射
func statusOf(err *model.Error) int {
	switch err.Code {
	case model.ErrorParams, model.ErrorEmptyId:
		return http.StatusBadRequest
	case model.ErrorUnauthorized:
		return http.StatusUnauthorized
	case model.ErrorForbidden:
		return http.StatusForbidden
	case model.ErrorNotFound:
		return http.StatusNotFound
	case model.ErrorBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(ctx *gin.Context, err *model.Error) {
	ctx.JSON(statusOf(err), err)
}
