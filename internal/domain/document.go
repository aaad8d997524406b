package domain

import (
	"fmt"
	"time"
)

// Document is one scraped knowledge-base article. Identity is the URL:
// re-scraping the same URL updates the existing row instead of creating a
// new one.
type Document struct {
	ID          string
	URL         string
	Title       string
	Content     string
	LastUpdated string
	Author      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NeedsUpdate reports whether an incoming scrape differs from the stored
// document. Only content and author participate in the comparison, so
// re-ingesting unchanged articles stays a no-op.
func (d *Document) NeedsUpdate(content, author string) bool {
	return d.Content != content || d.Author != author
}

// ValidateDocument validates a Document instance before persistence.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.URL == "" {
		return NewDomainError(ErrCodeValidation, "document URL is required")
	}
	if d.Content == "" {
		return NewDomainError(ErrCodeValidation, "document content is required")
	}
	return nil
}

// EmbeddingRecord is the derived vector for a document, one-to-one with
// Document and always regenerable from its content.
type EmbeddingRecord struct {
	DocumentID string
	Vector     []float32
	UpdatedAt  time.Time
}
