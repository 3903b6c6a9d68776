package handlers

import (
	"context"

	"github.com/futig/admissions-assistant/internal/entity"
)

// ChatUsecase is the subset of the chat core the bot drives
type ChatUsecase interface {
	CreateSession(ctx context.Context) (*entity.CreateSessionResponse, error)
	GetHistory(ctx context.Context, sessionID string) (*entity.MessagesDTO, error)
	GetApplication(ctx context.Context, sessionID string) (*entity.Application, error)
	PostMessage(ctx context.Context, sessionID string, req *entity.PostMessageRequest) (*entity.TurnResult, error)
	ResetSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
}

// SessionStore maps Telegram users to chat sessions
type SessionStore interface {
	Get(ctx context.Context, userID int64) (string, error)
	Set(ctx context.Context, userID int64, sessionID string) error
}

// Sender delivers replies to a Telegram chat
type Sender interface {
	Send(chatID int64, text string) error
	SendDocument(chatID int64, filename string, data []byte) error
	Typing(chatID int64) error
}

// Message represents a normalized Telegram message
type Message struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	Command   string
}
