package service

import (
	"context"
	"fmt"
	"log"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/curio-labs/curiobot/internal/jobs"
	"github.com/curio-labs/curiobot/internal/telemetry"
)

// ArticleScraper fetches and parses help-center pages. Scraping details live
// behind this boundary; the ingestion stage only sequences and stores.
type ArticleScraper interface {
	// DiscoverArticleURLs walks the root page's sections and returns every
	// article URL found.
	DiscoverArticleURLs(ctx context.Context, rootURL string) ([]string, error)
	// ScrapeArticle fetches one article page and extracts its fields.
	ScrapeArticle(ctx context.Context, url string) (*domain.Document, error)
}

// IngestDocumentRepository persists scraped documents.
type IngestDocumentRepository interface {
	Upsert(ctx context.Context, d *domain.Document) (bool, error)
}

// BatchExecutor fans item operations out with bounded concurrency and
// bounded retry, returning the IDs that permanently failed.
type BatchExecutor interface {
	Run(ctx context.Context, items []jobs.Item) []string
}

// CompletionNotifier signals the coordinator that a stage finished.
type CompletionNotifier interface {
	NotifyComplete(ctx context.Context) error
}

// IngestService is the ingestion stage: discover article URLs, scrape each
// one, store the results, then signal completion.
type IngestService struct {
	scraper  ArticleScraper
	docs     IngestDocumentRepository
	exec     BatchExecutor
	notifier CompletionNotifier
	rootURL  string
}

func NewIngestService(
	scraper ArticleScraper,
	docs IngestDocumentRepository,
	exec BatchExecutor,
	notifier CompletionNotifier,
	rootURL string,
) *IngestService {
	return &IngestService{
		scraper:  scraper,
		docs:     docs,
		exec:     exec,
		notifier: notifier,
		rootURL:  rootURL,
	}
}

// Run executes the full ingestion pass. Per-URL failures are isolated by the
// executor and reported through logs; only discovery failure aborts the run.
// Completion is signalled in both cases so the pipeline always advances.
func (s *IngestService) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Run", telemetry.SpanAttributes{
		Stage:     "ingestion",
		Operation: "run",
	})
	defer span.End()

	urls, err := s.scraper.DiscoverArticleURLs(ctx, s.rootURL)
	if err != nil {
		s.notifyComplete(ctx)
		return fmt.Errorf("failed to discover article urls: %w", err)
	}

	log.Printf("ingestion: discovered %d article urls", len(urls))

	items := make([]jobs.Item, 0, len(urls))
	for _, url := range urls {
		url := url
		items = append(items, jobs.Item{
			ID: url,
			Fn: func(ctx context.Context) error {
				doc, err := s.scraper.ScrapeArticle(ctx, url)
				if err != nil {
					return err
				}
				written, err := s.docs.Upsert(ctx, doc)
				if err != nil {
					return err
				}
				if !written {
					log.Printf("ingestion: article %s unchanged, skipped", url)
				}
				return nil
			},
		})
	}

	failed := s.exec.Run(ctx, items)
	if len(failed) > 0 {
		log.Printf("ingestion: %d of %d articles failed permanently: %v", len(failed), len(items), failed)
	} else {
		log.Printf("ingestion: stored %d articles", len(items))
	}

	s.notifyComplete(ctx)
	return nil
}

func (s *IngestService) notifyComplete(ctx context.Context) {
	if err := s.notifier.NotifyComplete(ctx); err != nil {
		log.Printf("ingestion: failed to notify completion: %v", err)
	}
}
