package chat

import (
	"context"

	"github.com/futig/admissions-assistant/internal/entity"
)

type ChatUsecase interface {
	CreateSession(ctx context.Context) (*entity.CreateSessionResponse, error)
	GetSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	GetHistory(ctx context.Context, sessionID string) (*entity.MessagesDTO, error)
	GetApplication(ctx context.Context, sessionID string) (*entity.Application, error)
	PostMessage(ctx context.Context, sessionID string, req *entity.PostMessageRequest) (*entity.TurnResult, error)
	ResetSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
