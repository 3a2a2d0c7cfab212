package repository

import (
	"healthcare_assistant/entity"
	"healthcare_assistant/model"
)

type UserProfileRepository interface {
	Upsert(req *model.UpsertUserProfileCondition) error
	Get(namespace, userID, key string) (*entity.UserProfile, error)
}
