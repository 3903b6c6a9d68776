package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.Application) (*entity.Application, error)
	Update(ctx context.Context, app *entity.Application) (*entity.Application, error)
	// GetLatest returns the most recently created application of the session.
	GetLatest(ctx context.Context, sessionID string) (*entity.Application, error)
}

var _ ApplicationRepository = &ApplicationPostgres{}

type ApplicationPostgres struct {
	db *pgxpool.Pool
}

func NewApplicationPostgres(db *pgxpool.Pool) *ApplicationPostgres {
	return &ApplicationPostgres{db: db}
}

const applicationColumns = `id, session_id, fields, status, review_status, created_at, updated_at, completed_at`

func (r *ApplicationPostgres) Create(ctx context.Context, app *entity.Application) (*entity.Application, error) {
	id, err := toPgUUID(app.ID, "application")
	if err != nil {
		return nil, err
	}
	sessionID, err := toPgUUID(app.SessionID, "session")
	if err != nil {
		return nil, err
	}
	fields, err := marshalFields(app.Fields)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO applications (id, session_id, fields, status, review_status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+applicationColumns,
		id, sessionID, fields, string(app.Status), reviewStatusParam(app.ReviewStatus), toPgTimestamp(app.CompletedAt),
	)

	created, err := scanApplication(row)
	if err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return created, nil
}

func (r *ApplicationPostgres) Update(ctx context.Context, app *entity.Application) (*entity.Application, error) {
	id, err := toPgUUID(app.ID, "application")
	if err != nil {
		return nil, err
	}
	fields, err := marshalFields(app.Fields)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `
		UPDATE applications
		SET fields = $2, status = $3, review_status = $4, completed_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+applicationColumns,
		id, fields, string(app.Status), reviewStatusParam(app.ReviewStatus), toPgTimestamp(app.CompletedAt),
	)

	updated, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrApplicationNotFound, app.ID)
		}
		return nil, fmt.Errorf("update application: %w", err)
	}
	return updated, nil
}

func (r *ApplicationPostgres) GetLatest(ctx context.Context, sessionID string) (*entity.Application, error) {
	pgID, err := toPgUUID(sessionID, "session")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrApplicationNotFound, err)
	}

	row := r.db.QueryRow(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		pgID,
	)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %s", entity.ErrApplicationNotFound, sessionID)
		}
		return nil, fmt.Errorf("query application: %w", err)
	}
	return app, nil
}

func marshalFields(fields map[entity.ApplicationField]string) ([]byte, error) {
	if fields == nil {
		fields = map[entity.ApplicationField]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal application fields: %w", err)
	}
	return data, nil
}

func reviewStatusParam(status *entity.ReviewStatus) pgtype.Text {
	if status == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*status), Valid: true}
}

func scanApplication(row pgx.Row) (*entity.Application, error) {
	var (
		id        pgtype.UUID
		sessionID pgtype.UUID
		fields    []byte
		status    string
		review    pgtype.Text
		created   pgtype.Timestamptz
		updated   pgtype.Timestamptz
		completed pgtype.Timestamptz
	)
	if err := row.Scan(&id, &sessionID, &fields, &status, &review, &created, &updated, &completed); err != nil {
		return nil, err
	}

	app := &entity.Application{
		ID:          fromPgUUID(id),
		SessionID:   fromPgUUID(sessionID),
		Fields:      map[entity.ApplicationField]string{},
		Status:      entity.ApplicationStatus(status),
		CreatedAt:   created.Time,
		UpdatedAt:   updated.Time,
		CompletedAt: fromPgTimestamp(completed),
	}
	if err := json.Unmarshal(fields, &app.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal application fields: %w", err)
	}
	if review.Valid {
		rs := entity.ReviewStatus(review.String)
		app.ReviewStatus = &rs
	}
	return app, nil
}
