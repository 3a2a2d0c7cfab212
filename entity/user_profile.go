package entity

import "time"

const (
	TableNameUserProfile = "user_profile"

	UserProfileFieldID        = "id"
	UserProfileFieldNamespace = "namespace"
	UserProfileFieldUserID    = "user_id"
	UserProfileFieldKey       = "key"
	UserProfileFieldValue     = "value"
	UserProfileFieldUpdatedAt = "updated_at"
)

// UserProfile 用户画像 KV 记录，按 (namespace, user_id, key) 定位
type UserProfile struct {
	ID        int64     `xorm:"pk autoincr id" json:"id"`
	Namespace string    `xorm:"namespace" json:"namespace"`
	UserID    string    `xorm:"user_id" json:"user_id"`
	Key       string    `xorm:"key" json:"key"`
	Value     string    `xorm:"value" json:"value"` // JSONB 类型，存储为 JSON 字符串
	UpdatedAt time.Time `xorm:"updated_at" json:"updated_at"`
}

func (e *UserProfile) TableName() string {
	return TableNameUserProfile
}
