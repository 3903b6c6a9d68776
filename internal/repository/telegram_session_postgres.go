package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TelegramSessionRepository maps a Telegram user to their current chat session.
type TelegramSessionRepository interface {
	Get(ctx context.Context, userID int64) (string, error)
	Set(ctx context.Context, userID int64, sessionID string) error
}

var _ TelegramSessionRepository = &TelegramSessionPostgres{}

type TelegramSessionPostgres struct {
	db *pgxpool.Pool
}

func NewTelegramSessionPostgres(db *pgxpool.Pool) *TelegramSessionPostgres {
	return &TelegramSessionPostgres{db: db}
}

func (r *TelegramSessionPostgres) Get(ctx context.Context, userID int64) (string, error) {
	var sessionID pgtype.UUID
	err := r.db.QueryRow(ctx, `SELECT session_id FROM telegram_sessions WHERE user_id = $1`, userID).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: telegram user %d", entity.ErrSessionNotFound, userID)
		}
		return "", fmt.Errorf("query telegram session: %w", err)
	}
	return fromPgUUID(sessionID), nil
}

func (r *TelegramSessionPostgres) Set(ctx context.Context, userID int64, sessionID string) error {
	pgID, err := toPgUUID(sessionID, "session")
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO telegram_sessions (user_id, session_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET session_id = EXCLUDED.session_id, updated_at = NOW()`,
		userID, pgID,
	)
	if err != nil {
		return fmt.Errorf("upsert telegram session: %w", err)
	}
	return nil
}
