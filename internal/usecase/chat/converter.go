package chat

import "github.com/futig/admissions-assistant/internal/entity"

func toSessionDTO(session *entity.ChatSession, messageCount int) *entity.SessionDTO {
	return &entity.SessionDTO{
		ID:           session.ID,
		Phase:        session.Phase,
		MessageCount: messageCount,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
}
