package repository

import (
	"context"
	"errors"
	"time"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Upsert inserts the document or updates it in place, keyed by URL. When the
// stored content and author already match, nothing is written and
// Upsert reports false; re-running ingestion on unchanged content is a no-op.
// ID and timestamps on the argument are ignored, the store owns them.
func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.Document) (bool, error) {
	if err := domain.ValidateDocument(d); err != nil {
		return false, err
	}

	existing, err := r.GetByURL(ctx, d.URL)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return false, err
	}

	now := time.Now().UTC()

	if existing != nil {
		if !existing.NeedsUpdate(d.Content, d.Author) {
			return false, nil
		}
		_, err := r.db.Exec(ctx,
			`UPDATE documents SET title = $1, content = $2, last_updated = $3, author = $4, updated_at = $5
			 WHERE url = $6`,
			d.Title, d.Content, d.LastUpdated, d.Author, now, d.URL,
		)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO documents (id, url, title, content, last_updated, author, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (url) DO UPDATE
		 SET title = EXCLUDED.title, content = EXCLUDED.content, last_updated = EXCLUDED.last_updated,
		     author = EXCLUDED.author, updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), d.URL, d.Title, d.Content, d.LastUpdated, d.Author, now, now,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, url, title, content, last_updated, author, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.URL, &d.Title, &d.Content, &d.LastUpdated, &d.Author, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepository) GetByURL(ctx context.Context, url string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, url, title, content, last_updated, author, created_at, updated_at
		 FROM documents WHERE url = $1`,
		url,
	).Scan(&d.ID, &d.URL, &d.Title, &d.Content, &d.LastUpdated, &d.Author, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, url, title, content, last_updated, author, created_at, updated_at
		 FROM documents ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.URL, &d.Title, &d.Content, &d.LastUpdated, &d.Author, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
