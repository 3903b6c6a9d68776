package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/repository/memory"
	"github.com/futig/admissions-assistant/internal/telegram/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentDocument struct {
	filename string
	data     []byte
}

type recordingSender struct {
	mu        sync.Mutex
	texts     []string
	documents []sentDocument
}

func (s *recordingSender) Send(_ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSender) SendDocument(_ int64, filename string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, sentDocument{filename: filename, data: data})
	return nil
}

func (s *recordingSender) Typing(int64) error { return nil }

func (s *recordingSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

type fakeChat struct {
	created  int
	live     map[string]bool
	posts    map[string][]string
	postErr  error
	app      *entity.Application
	resetIDs []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{live: map[string]bool{}, posts: map[string][]string{}}
}

func (f *fakeChat) CreateSession(context.Context) (*entity.CreateSessionResponse, error) {
	f.created++
	id := fmt.Sprintf("session-%d", f.created)
	f.live[id] = true
	return &entity.CreateSessionResponse{SessionID: id, Phase: entity.PhaseNormal, WelcomeMessage: "Welcome!"}, nil
}

func (f *fakeChat) GetHistory(_ context.Context, id string) (*entity.MessagesDTO, error) {
	if !f.live[id] {
		return nil, entity.ErrSessionNotFound
	}
	return &entity.MessagesDTO{SessionID: id, Messages: []*entity.ChatMessage{
		{ID: "m1", SessionID: id, Role: entity.RoleUser, Text: "hello from the transcript"},
	}}, nil
}

func (f *fakeChat) GetApplication(context.Context, string) (*entity.Application, error) {
	if f.app == nil {
		return nil, entity.ErrApplicationNotFound
	}
	return f.app, nil
}

func (f *fakeChat) PostMessage(_ context.Context, id string, req *entity.PostMessageRequest) (*entity.TurnResult, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	if !f.live[id] {
		return nil, fmt.Errorf("get session: %w", entity.ErrSessionNotFound)
	}
	f.posts[id] = append(f.posts[id], req.Message)
	return &entity.TurnResult{SessionID: id, ResponseText: "answer: " + req.Message, Phase: entity.PhaseNormal}, nil
}

func (f *fakeChat) ResetSession(_ context.Context, id string) (*entity.SessionDTO, error) {
	if !f.live[id] {
		return nil, entity.ErrSessionNotFound
	}
	f.resetIDs = append(f.resetIDs, id)
	return &entity.SessionDTO{ID: id, Phase: entity.PhaseNormal}, nil
}

type harness struct {
	handler  *ChatHandler
	sender   *recordingSender
	chat     *fakeChat
	sessions *memory.TelegramSessionStore
}

func newHarness() *harness {
	h := &harness{
		sender:   &recordingSender{},
		chat:     newFakeChat(),
		sessions: memory.NewTelegramSessionStore(),
	}
	fields := []entity.ApplicationField{entity.FieldName, entity.FieldEmail}
	h.handler = NewChatHandler(h.sender, h.sessions, h.chat, fields, zap.NewNop())
	return h
}

func (h *harness) text(userID int64, text string) {
	h.handler.Handle(context.Background(), &Message{ChatID: userID, UserID: userID, Text: text})
}

func (h *harness) command(userID int64, command string) {
	h.handler.Handle(context.Background(), &Message{ChatID: userID, UserID: userID, Text: "/" + command, Command: command})
}

func TestHandle_StartOpensSession(t *testing.T) {
	h := newHarness()

	h.command(7, "start")

	assert.Equal(t, "Welcome!", h.sender.last())
	id, err := h.sessions.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)
}

func TestHandle_TextReusesSession(t *testing.T) {
	h := newHarness()

	h.text(7, "What programs do you offer?")
	h.text(7, "And the deadlines?")

	assert.Equal(t, 1, h.chat.created)
	assert.Equal(t, []string{"What programs do you offer?", "And the deadlines?"}, h.chat.posts["session-1"])
	assert.Equal(t, "answer: And the deadlines?", h.sender.last())
}

func TestHandle_UsersGetSeparateSessions(t *testing.T) {
	h := newHarness()

	h.text(1, "hello")
	h.text(2, "hello")

	first, err := h.sessions.Get(context.Background(), 1)
	require.NoError(t, err)
	second, err := h.sessions.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHandle_DeletedSessionIsReplaced(t *testing.T) {
	h := newHarness()
	h.command(7, "start")
	h.chat.live["session-1"] = false

	h.text(7, "still there?")

	assert.Equal(t, []string{"still there?"}, h.chat.posts["session-2"])
	id, err := h.sessions.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "session-2", id)
}

func TestHandle_Reset(t *testing.T) {
	h := newHarness()
	h.command(7, "start")

	h.command(7, "reset")

	assert.Equal(t, []string{"session-1"}, h.chat.resetIDs)
	assert.Equal(t, render.MsgReset, h.sender.last())
}

func TestHandle_Application(t *testing.T) {
	h := newHarness()
	h.command(7, "start")

	h.command(7, "application")
	assert.Equal(t, render.MsgNoApplication, h.sender.last())

	h.chat.app = &entity.Application{
		Status: entity.ApplicationStatusCollecting,
		Fields: map[entity.ApplicationField]string{entity.FieldName: "Ada Lovelace"},
	}
	h.command(7, "application")

	reply := h.sender.last()
	assert.Contains(t, reply, "Name: Ada Lovelace")
	assert.Contains(t, reply, "Email: not provided")
}

func TestHandle_Transcript(t *testing.T) {
	h := newHarness()
	h.command(7, "start")

	h.command(7, "transcript")

	require.Len(t, h.sender.documents, 1)
	doc := h.sender.documents[0]
	assert.True(t, strings.HasSuffix(doc.filename, ".md"))
	assert.Contains(t, string(doc.data), "hello from the transcript")
}

func TestHandle_ErrorsBecomeFriendlyReplies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"retryable", fmt.Errorf("generate: %w", entity.ErrGenerationUnavailable), render.ErrServiceUnavailable},
		{"invalid", fmt.Errorf("%w: message is empty", entity.ErrInvalidParameter), render.ErrInvalidInput},
		{"cancelled", entity.ErrTurnCancelled, render.ErrTurnCancelled},
		{"unknown", fmt.Errorf("boom"), render.ErrGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.chat.postErr = tt.err

			h.text(7, "hello")

			assert.Equal(t, tt.want, h.sender.last())
		})
	}
}

func TestHandle_UnknownCommandAndNonText(t *testing.T) {
	h := newHarness()

	h.command(7, "launch")
	assert.Equal(t, render.MsgUnknownCommand, h.sender.last())

	h.text(7, "")
	assert.Equal(t, render.MsgTextOnly, h.sender.last())
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("aaaaaa\nbbbbbb", 10)
	assert.Equal(t, []string{"aaaaaa\n", "bbbbbb"}, parts)

	parts = splitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)
}
