package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthcare_assistant/middleware"
	"healthcare_assistant/model"
	"healthcare_assistant/service/profile"
)

// ProfileController 用户画像接口
type ProfileController struct {
	profileService *profile.Service
}

func NewProfileController(profileService *profile.Service) *ProfileController {
	return &ProfileController{profileService: profileService}
}

// GetProfile 当前用户的画像
// @Success model.UserProfile
func (c *ProfileController) GetProfile(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		abortWithError(ctx, model.NewErrorWithMessage(model.ErrorUnauthorized, model.ErrorMessages[model.ErrorUnauthorized]))
		return
	}

	userProfile, modelErr := c.profileService.Get(ctx, userID)
	if modelErr != nil {
		abortWithError(ctx, modelErr)
		return
	}
	if userProfile == nil {
		abortWithError(ctx, model.NewErrorWithMessage(model.ErrorNotFound, model.ErrorMessages[model.ErrorNotFound]))
		return
	}
	ctx.JSON(http.StatusOK, userProfile)
}
