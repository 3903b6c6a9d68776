// Package memory holds in-process repositories used for local runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/repository"
)

var (
	_ repository.SessionRepository         = &SessionStore{}
	_ repository.MessageRepository         = &MessageStore{}
	_ repository.ApplicationRepository     = &ApplicationStore{}
	_ repository.DocumentRepository        = &DocumentStore{}
	_ repository.TelegramSessionRepository = &TelegramSessionStore{}
)

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]entity.ChatSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]entity.ChatSession)}
}

func (s *SessionStore) Create(_ context.Context, session *entity.ChatSession) (*entity.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return nil, fmt.Errorf("create session: duplicate id %s", session.ID)
	}

	now := time.Now().UTC()
	created := *session
	created.CreatedAt = now
	created.UpdatedAt = now
	s.sessions[created.ID] = created
	return &created, nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*entity.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || session.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrSessionNotFound, id)
	}
	return &session, nil
}

func (s *SessionStore) UpdatePhase(_ context.Context, id string, phase entity.Phase) (*entity.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrSessionNotFound, id)
	}
	session.Phase = phase
	session.UpdatedAt = time.Now().UTC()
	s.sessions[id] = session
	return &session, nil
}

func (s *SessionStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.DeletedAt != nil {
		return fmt.Errorf("%w: %s", entity.ErrSessionNotFound, id)
	}
	now := time.Now().UTC()
	session.DeletedAt = &now
	session.UpdatedAt = now
	s.sessions[id] = session
	return nil
}

type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]entity.ChatMessage
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]entity.ChatMessage)}
}

func (s *MessageStore) Append(_ context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *msg
	saved.CreatedAt = time.Now().UTC()
	if history := s.messages[saved.SessionID]; len(history) > 0 {
		// keep timestamps strictly increasing within a session
		if last := history[len(history)-1].CreatedAt; !saved.CreatedAt.After(last) {
			saved.CreatedAt = last.Add(time.Microsecond)
		}
	}
	s.messages[saved.SessionID] = append(s.messages[saved.SessionID], saved)
	return &saved, nil
}

func (s *MessageStore) List(_ context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.messages[sessionID]), nil
}

func (s *MessageStore) ListRecent(_ context.Context, sessionID string, limit int) ([]*entity.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[sessionID]
	return copyMessages(history[max(0, len(history)-limit):]), nil
}

func (s *MessageStore) Count(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[sessionID]), nil
}

func copyMessages(history []entity.ChatMessage) []*entity.ChatMessage {
	out := make([]*entity.ChatMessage, 0, len(history))
	for _, m := range history {
		out = append(out, &m)
	}
	return out
}

type ApplicationStore struct {
	mu   sync.RWMutex
	apps map[string][]entity.Application
}

func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{apps: make(map[string][]entity.Application)}
}

func (s *ApplicationStore) Create(_ context.Context, app *entity.Application) (*entity.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	created := cloneApplication(app)
	created.CreatedAt = now
	created.UpdatedAt = now
	s.apps[created.SessionID] = append(s.apps[created.SessionID], created)
	out := cloneApplication(&created)
	return &out, nil
}

func (s *ApplicationStore) Update(_ context.Context, app *entity.Application) (*entity.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps := s.apps[app.SessionID]
	for i := range apps {
		if apps[i].ID != app.ID {
			continue
		}
		updated := cloneApplication(app)
		updated.CreatedAt = apps[i].CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		apps[i] = updated
		out := cloneApplication(&updated)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %s", entity.ErrApplicationNotFound, app.ID)
}

func (s *ApplicationStore) GetLatest(_ context.Context, sessionID string) (*entity.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := s.apps[sessionID]
	if len(apps) == 0 {
		return nil, fmt.Errorf("%w: session %s", entity.ErrApplicationNotFound, sessionID)
	}
	out := cloneApplication(&apps[len(apps)-1])
	return &out, nil
}

func cloneApplication(app *entity.Application) entity.Application {
	c := *app
	c.Fields = maps.Clone(app.Fields)
	if c.Fields == nil {
		c.Fields = map[entity.ApplicationField]string{}
	}
	return c
}

type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]entity.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]entity.Document)}
}

func (s *DocumentStore) Create(_ context.Context, doc *entity.Document) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrDocumentExists, doc.ID)
	}
	created := *doc
	created.ChunkIDs = slices.Clone(doc.ChunkIDs)
	created.IngestedAt = time.Now().UTC()
	s.docs[created.ID] = created
	return &created, nil
}

func (s *DocumentStore) Get(_ context.Context, id string) (*entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrDocumentNotFound, id)
	}
	return &doc, nil
}

func (s *DocumentStore) List(_ context.Context) ([]*entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*entity.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, &d)
	}
	slices.SortFunc(docs, func(a, b *entity.Document) int {
		if c := a.IngestedAt.Compare(b.IngestedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return docs, nil
}

func (s *DocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: %s", entity.ErrDocumentNotFound, id)
	}
	delete(s.docs, id)
	return nil
}

func (s *DocumentStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

type TelegramSessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]string
}

func NewTelegramSessionStore() *TelegramSessionStore {
	return &TelegramSessionStore{sessions: make(map[int64]string)}
}

func (s *TelegramSessionStore) Get(_ context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sessions[userID]
	if !ok {
		return "", fmt.Errorf("%w: telegram user %d", entity.ErrSessionNotFound, userID)
	}
	return id, nil
}

func (s *TelegramSessionStore) Set(_ context.Context, userID int64, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sessionID
	return nil
}
