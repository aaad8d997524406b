package service

import (
	"context"
	"fmt"
	"log"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/curio-labs/curiobot/internal/jobs"
	"github.com/curio-labs/curiobot/internal/telemetry"
)

// EmbedderClient produces embedding vectors for text.
type EmbedderClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingDocumentRepository lists the stored documents to embed.
type EmbeddingDocumentRepository interface {
	ListAll(ctx context.Context) ([]*domain.Document, error)
}

// EmbeddingVectorRepository persists embedding vectors keyed by document.
type EmbeddingVectorRepository interface {
	Upsert(ctx context.Context, documentID string, vector []float32) (bool, error)
}

// EmbeddingService is the embedding stage: for every stored document,
// generate an embedding of its content and persist it, then signal
// completion.
type EmbeddingService struct {
	embedder   EmbedderClient
	docs       EmbeddingDocumentRepository
	embeddings EmbeddingVectorRepository
	exec       BatchExecutor
	notifier   CompletionNotifier
}

func NewEmbeddingService(
	embedder EmbedderClient,
	docs EmbeddingDocumentRepository,
	embeddings EmbeddingVectorRepository,
	exec BatchExecutor,
	notifier CompletionNotifier,
) *EmbeddingService {
	return &EmbeddingService{
		embedder:   embedder,
		docs:       docs,
		embeddings: embeddings,
		exec:       exec,
		notifier:   notifier,
	}
}

// Run embeds every stored document. Per-document failures are isolated by
// the executor; only the initial listing aborts the run. Completion is
// signalled in both cases.
func (s *EmbeddingService) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.Run", telemetry.SpanAttributes{
		Stage:     "embedding",
		Operation: "run",
	})
	defer span.End()

	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		s.notifyComplete(ctx)
		return fmt.Errorf("failed to list documents: %w", err)
	}

	log.Printf("embedding: generating embeddings for %d documents", len(docs))

	items := make([]jobs.Item, 0, len(docs))
	for _, doc := range docs {
		doc := doc
		items = append(items, jobs.Item{
			ID: doc.ID,
			Fn: func(ctx context.Context) error {
				vector, err := s.embedder.GenerateEmbedding(ctx, doc.Content)
				if err != nil {
					return err
				}
				written, err := s.embeddings.Upsert(ctx, doc.ID, vector)
				if err != nil {
					return err
				}
				if !written {
					log.Printf("embedding: document %s unchanged, skipped", doc.ID)
				}
				return nil
			},
		})
	}

	failed := s.exec.Run(ctx, items)
	if len(failed) > 0 {
		log.Printf("embedding: %d of %d documents failed permanently: %v", len(failed), len(items), failed)
	} else {
		log.Printf("embedding: stored embeddings for %d documents", len(items))
	}

	s.notifyComplete(ctx)
	return nil
}

func (s *EmbeddingService) notifyComplete(ctx context.Context) {
	if err := s.notifier.NotifyComplete(ctx); err != nil {
		log.Printf("embedding: failed to notify completion: %v", err)
	}
}
