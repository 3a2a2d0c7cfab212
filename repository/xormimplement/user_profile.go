package xormimplement

import (
	"fmt"
	"time"

	"healthcare_assistant/entity"
	"healthcare_assistant/model"
	"healthcare_assistant/repository"

	"xorm.io/builder"
)

type UserProfileRepository struct {
	session *Session
}

func NewUserProfileRepository(session *Session) repository.UserProfileRepository {
	return &UserProfileRepository{session: session}
}

func (r *UserProfileRepository) Upsert(req *model.UpsertUserProfileCondition) error {
	if req == nil {
		return fmt.Errorf("upsert request cannot be nil")
	}
	if req.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if req.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if req.Key == "" {
		return fmt.Errorf("key is required")
	}

	// 先尝试获取现有记录
	existing := &entity.UserProfile{}
	has, err := r.session.Table(entity.TableNameUserProfile).
		Where(builder.Eq{
			entity.UserProfileFieldNamespace: req.Namespace,
			entity.UserProfileFieldUserID:    req.UserID,
			entity.UserProfileFieldKey:       req.Key,
		}).
		Get(existing)
	if err != nil {
		return fmt.Errorf("failed to check existing user_profile: %w", err)
	}

	if has {
		// 更新现有记录，无条件覆盖
		updateData := map[string]interface{}{
			entity.UserProfileFieldValue:     req.Value,
			entity.UserProfileFieldUpdatedAt: time.Now(),
		}
		_, err = r.session.Table(entity.TableNameUserProfile).
			Where(builder.Eq{
				entity.UserProfileFieldNamespace: req.Namespace,
				entity.UserProfileFieldUserID:    req.UserID,
				entity.UserProfileFieldKey:       req.Key,
			}).
			Update(updateData)
		if err != nil {
			return fmt.Errorf("failed to update user_profile: %w", err)
		}
	} else {
		// 插入新记录
		newProfile := &entity.UserProfile{
			Namespace: req.Namespace,
			UserID:    req.UserID,
			Key:       req.Key,
			Value:     req.Value,
			UpdatedAt: time.Now(),
		}
		_, err = r.session.Table(entity.TableNameUserProfile).Insert(newProfile)
		if err != nil {
			return fmt.Errorf("failed to insert user_profile: %w", err)
		}
	}

	return nil
}

func (r *UserProfileRepository) Get(namespace, userID, key string) (*entity.UserProfile, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}

	result := &entity.UserProfile{}
	ok, err := r.session.Table(entity.TableNameUserProfile).
		Where(builder.Eq{
			entity.UserProfileFieldNamespace: namespace,
			entity.UserProfileFieldUserID:    userID,
			entity.UserProfileFieldKey:       key,
		}).
		Get(result)
	if err != nil {
		return nil, fmt.Errorf("failed to get user_profile: %w", err)
	}

	if !ok {
		return nil, nil
	}

	return result, nil
}
