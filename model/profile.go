package model

import (
	"strconv"
	"strings"
)

// Gender 性别枚举
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// IsValid 检查性别取值是否有效
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// UserProfile 用户画像，只记录用户明确说过的事实
type UserProfile struct {
	UserName   string   `json:"user_name"`
	Age        int      `json:"age"`
	Gender     Gender   `json:"gender"`
	Conditions []string `json:"conditions"`
}

// Format 拼成给提示词用的文本，空画像返回空串
func (p *UserProfile) Format() string {
	if p == nil {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("Name: " + p.UserName + "\n")
	builder.WriteString("Known Medical Conditions: " + strings.Join(p.Conditions, ", ") + "\n")
	age := "Unknown"
	if p.Age > 0 {
		age = strconv.Itoa(p.Age)
	}
	builder.WriteString("Age: " + age + "\n")
	builder.WriteString("Gender: " + string(p.Gender) + "\n")
	return builder.String()
}

// UpsertUserProfileCondition 插入或更新条件
type UpsertUserProfileCondition struct {
	Namespace string `json:"namespace"`
	UserID    string `json:"user_id"`
	Key       string `json:"key"`
	Value     string `json:"value"` // JSON 字符串
}
