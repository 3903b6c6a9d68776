// Package chat is the session manager: it owns chat history, the intent
// phase of each session and the application collected along the way.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/futig/admissions-assistant/internal/pkg/keylock"
	"github.com/futig/admissions-assistant/internal/pkg/logger"
	"github.com/futig/admissions-assistant/internal/pkg/validator"
	"github.com/futig/admissions-assistant/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Config struct {
	HistoryWindow     int
	TopK              int
	IntentThreshold   float64
	GenerationTimeout time.Duration
	MaxTokens         int
	UniversityName    string
	WelcomeMessage    string
	RefusalMessage    string
	RequiredFields    []entity.ApplicationField
	FieldPrompts      map[entity.ApplicationField]string
}

// ChatUsecase implements chat session business logic
type ChatUsecase struct {
	sessionRepo     repository.SessionRepository
	messageRepo     repository.MessageRepository
	applicationRepo repository.ApplicationRepository
	validator       *validator.Validator
	retriever       Retriever
	assembler       Assembler
	generator       Generator
	classifier      Classifier
	extractor       FieldExtractor
	cfg             Config
	logger          *zap.Logger

	turns *keylock.KeyLock

	mu       sync.Mutex
	inflight map[string]*turn
}

// NewUsecase creates a new chat use case
func NewUsecase(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	applicationRepo repository.ApplicationRepository,
	validator *validator.Validator,
	retriever Retriever,
	assembler Assembler,
	generator Generator,
	classifier Classifier,
	extractor FieldExtractor,
	cfg Config,
	logger *zap.Logger,
) *ChatUsecase {
	return &ChatUsecase{
		sessionRepo:     sessionRepo,
		messageRepo:     messageRepo,
		applicationRepo: applicationRepo,
		validator:       validator,
		retriever:       retriever,
		assembler:       assembler,
		generator:       generator,
		classifier:      classifier,
		extractor:       extractor,
		cfg:             cfg,
		logger:          logger,
		turns:           keylock.New(),
		inflight:        make(map[string]*turn),
	}
}

// CreateSession starts a conversation in the NORMAL phase
func (uc *ChatUsecase) CreateSession(ctx context.Context) (*entity.CreateSessionResponse, error) {
	session, err := uc.sessionRepo.Create(ctx, &entity.ChatSession{
		ID:            uuid.New().String(),
		Phase:         entity.PhaseNormal,
		HistoryWindow: uc.cfg.HistoryWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	ctxzap.Info(ctx, "chat session created", zap.String("session_id", session.ID))

	return &entity.CreateSessionResponse{
		SessionID:      session.ID,
		Phase:          session.Phase,
		WelcomeMessage: uc.cfg.WelcomeMessage,
		CreatedAt:      session.CreatedAt,
	}, nil
}

func (uc *ChatUsecase) GetSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	session, err := uc.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	count, err := uc.messageRepo.Count(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	return toSessionDTO(session, count), nil
}

// GetHistory returns every message of the session in order
func (uc *ChatUsecase) GetHistory(ctx context.Context, sessionID string) (*entity.MessagesDTO, error) {
	if _, err := uc.sessionRepo.Get(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	messages, err := uc.messageRepo.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if messages == nil {
		messages = []*entity.ChatMessage{}
	}

	return &entity.MessagesDTO{SessionID: sessionID, Messages: messages}, nil
}

// GetApplication returns the latest application started in the session
func (uc *ChatUsecase) GetApplication(ctx context.Context, sessionID string) (*entity.Application, error) {
	if _, err := uc.sessionRepo.Get(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	app, err := uc.applicationRepo.GetLatest(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// ResetSession returns the session to NORMAL and cancels a draft application.
// It waits for turns already queued on the session.
func (uc *ChatUsecase) ResetSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	ctx = logger.WithSession(logger.WithAction(ctx, "reset_session"), sessionID)

	unlock, err := uc.turns.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("wait for session: %w", err)
	}
	defer unlock()

	session, err := uc.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Phase == entity.PhaseCollectingApplication {
		if err := uc.cancelDraft(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	if session.Phase != entity.PhaseNormal {
		session, err = uc.transition(ctx, session, entity.PhaseNormal)
		if err != nil {
			return nil, err
		}
	}

	count, err := uc.messageRepo.Count(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	ctxzap.Info(ctx, "chat session reset")

	return toSessionDTO(session, count), nil
}

// DeleteSession soft-deletes the session and aborts a turn in progress.
// The aborted turn keeps its user message and never appends an answer.
func (uc *ChatUsecase) DeleteSession(ctx context.Context, sessionID string) error {
	ctx = logger.WithSession(logger.WithAction(ctx, "delete_session"), sessionID)

	if err := uc.sessionRepo.SoftDelete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if uc.abortTurn(sessionID) {
		ctxzap.Info(ctx, "in-flight turn cancelled by session deletion")
	}

	ctxzap.Info(ctx, "chat session deleted")
	return nil
}

// PostMessage processes one user turn. Turns of one session run strictly in
// arrival order.
func (uc *ChatUsecase) PostMessage(
	ctx context.Context,
	sessionID string,
	req *entity.PostMessageRequest,
) (*entity.TurnResult, error) {
	if err := uc.validator.ValidateMessage(req); err != nil {
		return nil, err
	}

	ctx = logger.WithSession(logger.WithAction(ctx, "post_message"), sessionID)

	unlock, err := uc.turns.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for previous turn: %w", entity.ErrTurnCancelled, err)
	}
	defer unlock()

	t := uc.beginTurn(ctx, sessionID)
	defer uc.endTurn(sessionID, t)

	result, outcome, err := uc.processTurn(t, sessionID, req)
	if err != nil {
		if t.ctx.Err() != nil && !errors.Is(err, entity.ErrTurnCancelled) {
			err = fmt.Errorf("%w: %w", entity.ErrTurnCancelled, err)
			outcome = "cancelled"
		}
		metrics.ChatTurns.WithLabelValues(outcome).Inc()
		ctxzap.Warn(ctx, "chat turn failed", zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}

	metrics.ChatTurns.WithLabelValues(outcome).Inc()
	return result, nil
}

func (uc *ChatUsecase) processTurn(t *turn, sessionID string, req *entity.PostMessageRequest) (*entity.TurnResult, string, error) {
	ctx := t.ctx
	text := strings.TrimSpace(req.Message)

	session, err := uc.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, "not_found", fmt.Errorf("get session: %w", err)
	}

	// COMPLETE only lasts for the turn that finished the application
	if session.Phase == entity.PhaseComplete {
		session, err = uc.transition(ctx, session, entity.PhaseNormal)
		if err != nil {
			return nil, "failed", err
		}
	}

	history, err := uc.messageRepo.ListRecent(ctx, sessionID, session.HistoryWindow)
	if err != nil {
		return nil, "failed", fmt.Errorf("load history: %w", err)
	}

	var detected *classification
	if session.Phase == entity.PhaseNormal {
		detected = uc.classify(ctx, text, session.Phase)
	}

	userMsg := &entity.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      entity.RoleUser,
		Text:      text,
	}
	if detected != nil {
		userMsg.IntentConfidence = &detected.confidence
	}

	userMsg, err = uc.messageRepo.Append(ctx, userMsg)
	if err != nil {
		return nil, "failed", fmt.Errorf("append user message: %w", err)
	}

	var reply *turnReply
	switch {
	case session.Phase == entity.PhaseCollectingApplication:
		reply, err = uc.continueApplication(ctx, session, text)
	case detected != nil && detected.triggers:
		reply, err = uc.startApplication(ctx, session, text)
	default:
		reply, err = uc.answer(ctx, session, history, text, req.Category)
	}
	if err != nil {
		return nil, "failed", err
	}

	assistantMsg, err := t.commit(func() (*entity.ChatMessage, error) {
		return uc.messageRepo.Append(ctx, &entity.ChatMessage{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Role:      entity.RoleAssistant,
			Text:      reply.text,
			Retrieval: reply.retrieval,
		})
	})
	if err != nil {
		return nil, "failed", err
	}

	result := &entity.TurnResult{
		SessionID:     sessionID,
		UserMessageID: userMsg.ID,
		MessageID:     assistantMsg.ID,
		ResponseText:  assistantMsg.Text,
		UsedChunkIDs:  reply.retrieval.ChunkIDs(),
		Phase:         reply.phase,
		Refused:       reply.refused,
		Application:   reply.application,
	}
	if detected != nil {
		result.IntentConfidence = &detected.confidence
	}
	if result.UsedChunkIDs == nil {
		result.UsedChunkIDs = []string{}
	}

	return result, reply.outcome, nil
}

type classification struct {
	confidence float64
	triggers   bool
}

// classify never fails the turn; a broken classifier means no intent.
func (uc *ChatUsecase) classify(ctx context.Context, text string, phase entity.Phase) *classification {
	res, err := uc.classifier.Classify(ctx, text, phase)
	if err != nil {
		ctxzap.Warn(ctx, "intent classification failed", zap.Error(err))
		return &classification{}
	}

	metrics.IntentConfidence.Observe(res.Confidence)

	c := &classification{
		confidence: res.Confidence,
		triggers:   res.IsApplicationIntent && res.Confidence >= uc.cfg.IntentThreshold,
	}

	ctxzap.Debug(ctx, "intent classified",
		zap.Float64("confidence", res.Confidence),
		zap.Bool("intent", res.IsApplicationIntent),
		zap.Bool("triggers", c.triggers),
		zap.String("reasoning", res.Reasoning),
	)
	return c
}

// transition persists a phase change.
func (uc *ChatUsecase) transition(ctx context.Context, session *entity.ChatSession, to entity.Phase) (*entity.ChatSession, error) {
	from := session.Phase
	updated, err := uc.sessionRepo.UpdatePhase(ctx, session.ID, to)
	if err != nil {
		return nil, fmt.Errorf("update session phase: %w", err)
	}

	metrics.PhaseTransitions.WithLabelValues(string(from), string(to)).Inc()
	ctxzap.Info(ctx, "session phase changed", zap.String("from", string(from)), zap.String("to", string(to)))

	return updated, nil
}
