package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type EmbeddingRepository struct {
	db dbtx
}

func NewEmbeddingRepository(pool *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool}
}

func NewEmbeddingRepositoryWithTx(tx pgx.Tx) *EmbeddingRepository {
	return &EmbeddingRepository{db: tx}
}

// Upsert stores the embedding for a document, one row per document. An
// identical stored vector is left untouched and Upsert reports false.
func (r *EmbeddingRepository) Upsert(ctx context.Context, documentID string, vector []float32) (bool, error) {
	existing, err := r.GetByDocumentID(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrEmbeddingNotFound) {
		return false, err
	}

	if existing != nil && slices.Equal(existing.Vector, vector) {
		return false, nil
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(ctx,
		`INSERT INTO document_embeddings (document_id, embedding, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_id) DO UPDATE
		 SET embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at`,
		documentID, pgvector.NewVector(vector), now,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *EmbeddingRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.EmbeddingRecord, error) {
	var rec domain.EmbeddingRecord
	var vec pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT document_id, embedding, updated_at FROM document_embeddings WHERE document_id = $1`,
		documentID,
	).Scan(&rec.DocumentID, &vec, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmbeddingNotFound
		}
		return nil, err
	}
	rec.Vector = vec.Slice()
	return &rec, nil
}

// ListAll returns the complete embedding set for the similarity scan.
func (r *EmbeddingRepository) ListAll(ctx context.Context) ([]*domain.EmbeddingRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id, embedding, updated_at FROM document_embeddings ORDER BY updated_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.EmbeddingRecord
	for rows.Next() {
		var rec domain.EmbeddingRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.DocumentID, &vec, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Vector = vec.Slice()
		results = append(results, &rec)
	}
	return results, rows.Err()
}
