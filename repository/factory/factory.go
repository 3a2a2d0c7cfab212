package factory

import (
	"context"

	"healthcare_assistant/repository"
	"healthcare_assistant/repository/interfaces"
)

type Factory interface {
	NewSession(ctx context.Context) interfaces.Session
	NewChatRepository(session interfaces.Session) (repository.ChatRepository, error)
	NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error)
}
