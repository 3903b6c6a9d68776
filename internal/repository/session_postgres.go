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

// SessionRepository defines the interface for chat session persistence.
// Soft-deleted sessions behave as missing.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) (*entity.ChatSession, error)
	Get(ctx context.Context, id string) (*entity.ChatSession, error)
	UpdatePhase(ctx context.Context, id string, phase entity.Phase) (*entity.ChatSession, error)
	SoftDelete(ctx context.Context, id string) error
}

var _ SessionRepository = &SessionPostgres{}

// SessionPostgres implements SessionRepository using PostgreSQL
type SessionPostgres struct {
	db *pgxpool.Pool
}

func NewSessionPostgres(db *pgxpool.Pool) *SessionPostgres {
	return &SessionPostgres{db: db}
}

const sessionColumns = `id, phase, history_window, created_at, updated_at, deleted_at`

func (r *SessionPostgres) Create(ctx context.Context, session *entity.ChatSession) (*entity.ChatSession, error) {
	id, err := toPgUUID(session.ID, "session")
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO chat_sessions (id, phase, history_window)
		VALUES ($1, $2, $3)
		RETURNING `+sessionColumns,
		id, string(session.Phase), session.HistoryWindow,
	)

	created, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

func (r *SessionPostgres) Get(ctx context.Context, id string) (*entity.ChatSession, error) {
	pgID, err := toPgUUID(id, "session")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrSessionNotFound, err)
	}

	row := r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM chat_sessions
		WHERE id = $1 AND deleted_at IS NULL`,
		pgID,
	)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

func (r *SessionPostgres) UpdatePhase(ctx context.Context, id string, phase entity.Phase) (*entity.ChatSession, error) {
	pgID, err := toPgUUID(id, "session")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrSessionNotFound, err)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE chat_sessions
		SET phase = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+sessionColumns,
		pgID, string(phase),
	)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("update session phase: %w", err)
	}
	return session, nil
}

func (r *SessionPostgres) SoftDelete(ctx context.Context, id string) error {
	pgID, err := toPgUUID(id, "session")
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrSessionNotFound, err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE chat_sessions
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		pgID,
	)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", entity.ErrSessionNotFound, id)
	}
	return nil
}

func scanSession(row pgx.Row) (*entity.ChatSession, error) {
	var (
		id        pgtype.UUID
		phase     string
		window    int32
		created   pgtype.Timestamptz
		updated   pgtype.Timestamptz
		deletedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &phase, &window, &created, &updated, &deletedAt); err != nil {
		return nil, err
	}

	return &entity.ChatSession{
		ID:            fromPgUUID(id),
		Phase:         entity.Phase(phase),
		HistoryWindow: int(window),
		CreatedAt:     created.Time,
		UpdatedAt:     updated.Time,
		DeletedAt:     fromPgTimestamp(deletedAt),
	}, nil
}
