package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository stores document metadata; chunk vectors live in the vector store.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	Get(ctx context.Context, id string) (*entity.Document, error)
	List(ctx context.Context) ([]*entity.Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

var _ DocumentRepository = &DocumentPostgres{}

type DocumentPostgres struct {
	db *pgxpool.Pool
}

func NewDocumentPostgres(db *pgxpool.Pool) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

const documentColumns = `id, title, category, filename, byte_length, chunk_ids, ingested_at`

func (r *DocumentPostgres) Create(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO documents (id, title, category, filename, byte_length, chunk_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+documentColumns,
		doc.ID, doc.Title, doc.Category, doc.Filename, doc.ByteLength, doc.ChunkIDs,
	)

	created, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", entity.ErrDocumentExists, doc.ID)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	return created, nil
}

func (r *DocumentPostgres) Get(ctx context.Context, id string) (*entity.Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

func (r *DocumentPostgres) List(ctx context.Context) ([]*entity.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY ingested_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", entity.ErrDocumentNotFound, id)
	}
	return nil
}

func (r *DocumentPostgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		doc      entity.Document
		ingested pgtype.Timestamptz
	)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Category, &doc.Filename, &doc.ByteLength, &doc.ChunkIDs, &ingested); err != nil {
		return nil, err
	}
	doc.IngestedAt = ingested.Time
	return &doc, nil
}
