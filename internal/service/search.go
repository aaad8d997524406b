package service

import (
	"context"
	"log"
	"math"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/curio-labs/curiobot/internal/telemetry"
)

// DefaultSimilarityThreshold is the acceptance cutoff for a match.
const DefaultSimilarityThreshold = 0.8

// MatcherEmbeddingRepository provides the complete embedding set.
type MatcherEmbeddingRepository interface {
	ListAll(ctx context.Context) ([]*domain.EmbeddingRecord, error)
}

// MatcherDocumentRepository resolves the winning record to its document.
type MatcherDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// Matcher finds the stored embedding closest to a query vector with a
// linear scan over the full embedding set.
type Matcher struct {
	embeddings MatcherEmbeddingRepository
	documents  MatcherDocumentRepository
	threshold  float64
}

// NewMatcher creates a Matcher. A non-positive threshold falls back to
// DefaultSimilarityThreshold.
func NewMatcher(embeddings MatcherEmbeddingRepository, documents MatcherDocumentRepository, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Matcher{
		embeddings: embeddings,
		documents:  documents,
		threshold:  threshold,
	}
}

// Match scans the full embedding set for the record most similar to the
// query vector. The winner must meet the acceptance threshold; otherwise the
// result reports no match even though a best score was computed. A nil query
// vector or an empty embedding set yields no match without error. Exact ties
// keep the first-seen record.
func (m *Matcher) Match(ctx context.Context, queryVector []float32) (*domain.MatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Matcher.Match", telemetry.SpanAttributes{
		Operation: "match",
	})
	defer span.End()

	result := &domain.MatchResult{Matched: false}

	if len(queryVector) == 0 {
		return result, nil
	}

	records, err := m.embeddings.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var (
		best      *domain.EmbeddingRecord
		bestScore float64
	)

	for _, rec := range records {
		if len(rec.Vector) != len(queryVector) {
			// Data-integrity failure: skip the record rather than let a
			// malformed vector distort the scan.
			log.Printf("skipping embedding for document %s: %v (have %d, want %d)",
				rec.DocumentID, domain.ErrVectorDimensionMismatch, len(rec.Vector), len(queryVector))
			continue
		}

		score := cosineSimilarity(queryVector, rec.Vector)
		if best == nil || score > bestScore {
			best = rec
			bestScore = score
		}
	}

	if best == nil {
		return result, nil
	}

	result.Score = bestScore
	if bestScore < m.threshold {
		return result, nil
	}

	doc, err := m.documents.GetByID(ctx, best.DocumentID)
	if err != nil {
		return nil, err
	}

	result.Matched = true
	result.Document = doc
	return result, nil
}

// cosineSimilarity computes dot(a,b) / (||a|| * ||b||), accumulating in
// float64. A zero-magnitude vector scores 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
