package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/pkg/formatter"
	"github.com/futig/admissions-assistant/internal/telegram/render"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ChatHandler turns Telegram messages into chat turns. Each user talks to one
// session at a time; the mapping survives bot restarts through SessionStore.
type ChatHandler struct {
	sender         Sender
	sessions       SessionStore
	chat           ChatUsecase
	requiredFields []entity.ApplicationField
	logger         *zap.Logger
}

func NewChatHandler(
	sender Sender,
	sessions SessionStore,
	chat ChatUsecase,
	requiredFields []entity.ApplicationField,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		sender:         sender,
		sessions:       sessions,
		chat:           chat,
		requiredFields: requiredFields,
		logger:         logger,
	}
}

// Handle routes a message to a command or to the chat core
func (h *ChatHandler) Handle(ctx context.Context, msg *Message) {
	ctx = ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(
		zap.Int64("user_id", msg.UserID),
		zap.Int64("chat_id", msg.ChatID),
	))

	if msg.Command != "" {
		h.handleCommand(ctx, msg)
		return
	}
	if msg.Text == "" {
		h.sender.Send(msg.ChatID, render.MsgTextOnly) //nolint:errcheck
		return
	}
	h.handleText(ctx, msg)
}

func (h *ChatHandler) handleCommand(ctx context.Context, msg *Message) {
	ctxzap.Info(ctx, "command received", zap.String("command", msg.Command))

	switch msg.Command {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.sender.Send(msg.ChatID, render.MsgHelp) //nolint:errcheck
	case "reset":
		h.handleReset(ctx, msg)
	case "application":
		h.handleApplication(ctx, msg)
	case "transcript":
		h.handleTranscript(ctx, msg)
	default:
		h.sender.Send(msg.ChatID, render.MsgUnknownCommand) //nolint:errcheck
	}
}

// handleStart always opens a fresh session
func (h *ChatHandler) handleStart(ctx context.Context, msg *Message) {
	created, err := h.newSession(ctx, msg.UserID)
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}
	h.sender.Send(msg.ChatID, created.WelcomeMessage) //nolint:errcheck
}

func (h *ChatHandler) handleReset(ctx context.Context, msg *Message) {
	sessionID, err := h.sessions.Get(ctx, msg.UserID)
	if errors.Is(err, entity.ErrSessionNotFound) {
		h.handleStart(ctx, msg)
		return
	}
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}

	if _, err := h.chat.ResetSession(ctx, sessionID); err != nil {
		if errors.Is(err, entity.ErrSessionNotFound) {
			h.handleStart(ctx, msg)
			return
		}
		h.handleError(ctx, msg.ChatID, err)
		return
	}
	h.sender.Send(msg.ChatID, render.MsgReset) //nolint:errcheck
}

func (h *ChatHandler) handleApplication(ctx context.Context, msg *Message) {
	sessionID, err := h.sessions.Get(ctx, msg.UserID)
	if errors.Is(err, entity.ErrSessionNotFound) {
		h.sender.Send(msg.ChatID, render.MsgNoApplication) //nolint:errcheck
		return
	}
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}

	app, err := h.chat.GetApplication(ctx, sessionID)
	if errors.Is(err, entity.ErrApplicationNotFound) {
		h.sender.Send(msg.ChatID, render.MsgNoApplication) //nolint:errcheck
		return
	}
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}
	h.sender.Send(msg.ChatID, render.RenderApplication(app, h.requiredFields)) //nolint:errcheck
}

// handleTranscript sends the conversation as a markdown file
func (h *ChatHandler) handleTranscript(ctx context.Context, msg *Message) {
	sessionID, err := h.sessions.Get(ctx, msg.UserID)
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}

	history, err := h.chat.GetHistory(ctx, sessionID)
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}
	app, err := h.chat.GetApplication(ctx, sessionID)
	if err != nil && !errors.Is(err, entity.ErrApplicationNotFound) {
		h.handleError(ctx, msg.ChatID, err)
		return
	}

	md := formatter.NewMarkdownFormatter()
	content, err := md.Format(&formatter.Transcript{
		SessionID:   sessionID,
		ExportedAt:  time.Now(),
		Messages:    history.Messages,
		Application: app,
	})
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}

	if err := h.sender.SendDocument(msg.ChatID, formatter.Filename(sessionID, md), content); err != nil {
		h.handleError(ctx, msg.ChatID, err)
	}
}

func (h *ChatHandler) handleText(ctx context.Context, msg *Message) {
	sessionID, err := h.sessionFor(ctx, msg.UserID)
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}

	typing := NewTypingNotifier(h.sender, msg.ChatID, h.logger)
	typing.Start(ctx)
	defer typing.Stop()

	req := &entity.PostMessageRequest{Message: msg.Text}
	result, err := h.chat.PostMessage(ctx, sessionID, req)
	if errors.Is(err, entity.ErrSessionNotFound) {
		// the session was deleted elsewhere; continue in a new one
		created, createErr := h.newSession(ctx, msg.UserID)
		if createErr != nil {
			h.handleError(ctx, msg.ChatID, createErr)
			return
		}
		result, err = h.chat.PostMessage(ctx, created.SessionID, req)
	}
	if err != nil {
		h.handleError(ctx, msg.ChatID, err)
		return
	}

	ctxzap.Debug(ctx, "turn answered",
		zap.String("session_id", result.SessionID),
		zap.String("phase", string(result.Phase)),
	)
	h.sender.Send(msg.ChatID, result.ResponseText) //nolint:errcheck
}

// sessionFor returns the user's current session, opening one on first contact
func (h *ChatHandler) sessionFor(ctx context.Context, userID int64) (string, error) {
	sessionID, err := h.sessions.Get(ctx, userID)
	if err == nil {
		return sessionID, nil
	}
	if !errors.Is(err, entity.ErrSessionNotFound) {
		return "", err
	}

	created, err := h.newSession(ctx, userID)
	if err != nil {
		return "", err
	}
	return created.SessionID, nil
}

func (h *ChatHandler) newSession(ctx context.Context, userID int64) (*entity.CreateSessionResponse, error) {
	created, err := h.chat.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.sessions.Set(ctx, userID, created.SessionID); err != nil {
		return nil, fmt.Errorf("bind telegram user: %w", err)
	}

	ctxzap.Info(ctx, "telegram session started", zap.String("session_id", created.SessionID))
	return created, nil
}
