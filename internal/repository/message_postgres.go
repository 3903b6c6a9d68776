package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository is the append-only chat history store.
type MessageRepository interface {
	Append(ctx context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error)
	List(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error)
	// ListRecent returns the last limit messages in chronological order.
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, sessionID string) (int, error)
}

var _ MessageRepository = &MessagePostgres{}

type MessagePostgres struct {
	db *pgxpool.Pool
}

func NewMessagePostgres(db *pgxpool.Pool) *MessagePostgres {
	return &MessagePostgres{db: db}
}

const messageColumns = `id, session_id, role, text, retrieval, intent_confidence, created_at`

func (r *MessagePostgres) Append(ctx context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error) {
	id, err := toPgUUID(msg.ID, "message")
	if err != nil {
		return nil, err
	}
	sessionID, err := toPgUUID(msg.SessionID, "session")
	if err != nil {
		return nil, err
	}

	var retrieval []byte
	if msg.Retrieval != nil {
		retrieval, err = json.Marshal(msg.Retrieval)
		if err != nil {
			return nil, fmt.Errorf("marshal retrieval: %w", err)
		}
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, role, text, retrieval, intent_confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+messageColumns,
		id, sessionID, string(msg.Role), msg.Text, retrieval, msg.IntentConfidence,
	)

	saved, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return saved, nil
}

func (r *MessagePostgres) List(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	pgID, err := toPgUUID(sessionID, "session")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrSessionNotFound, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY seq`,
		pgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectMessages(rows)
}

func (r *MessagePostgres) ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	pgID, err := toPgUUID(sessionID, "session")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrSessionNotFound, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`, seq
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq`,
		pgID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	return collectMessages(rows)
}

func (r *MessagePostgres) Count(ctx context.Context, sessionID string) (int, error) {
	pgID, err := toPgUUID(sessionID, "session")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", entity.ErrSessionNotFound, err)
	}

	var count int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages WHERE session_id = $1`, pgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func collectMessages(rows pgx.Rows) ([]*entity.ChatMessage, error) {
	defer rows.Close()

	var messages []*entity.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (*entity.ChatMessage, error) {
	var (
		id         pgtype.UUID
		sessionID  pgtype.UUID
		role       string
		text       string
		retrieval  []byte
		confidence pgtype.Float8
		created    pgtype.Timestamptz
	)
	if err := row.Scan(&id, &sessionID, &role, &text, &retrieval, &confidence, &created); err != nil {
		return nil, err
	}

	msg := &entity.ChatMessage{
		ID:        fromPgUUID(id),
		SessionID: fromPgUUID(sessionID),
		Role:      entity.MessageRole(role),
		Text:      text,
		CreatedAt: created.Time,
	}

	if len(retrieval) > 0 {
		var result entity.RetrievalResult
		if err := json.Unmarshal(retrieval, &result); err != nil {
			return nil, fmt.Errorf("unmarshal retrieval: %w", err)
		}
		msg.Retrieval = &result
	}

	if confidence.Valid {
		c := confidence.Float64
		msg.IntentConfidence = &c
	}

	return msg, nil
}
