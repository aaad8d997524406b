package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/curio-labs/curiobot/internal/jobs"
)

// syncExecutor runs items serially on the calling goroutine. Deterministic
// ordering keeps stage tests simple.
type syncExecutor struct{}

func (syncExecutor) Run(ctx context.Context, items []jobs.Item) []string {
	var failed []string
	for _, item := range items {
		if err := item.Fn(ctx); err != nil {
			failed = append(failed, item.ID)
		}
	}
	return failed
}

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) DiscoverArticleURLs(ctx context.Context, rootURL string) ([]string, error) {
	args := m.Called(ctx, rootURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockScraper) ScrapeArticle(ctx context.Context, url string) (*domain.Document, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Upsert(ctx context.Context, d *domain.Document) (bool, error) {
	args := m.Called(ctx, d)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentStore) ListAll(ctx context.Context) ([]*domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, documentID string, vector []float32) (bool, error) {
	args := m.Called(ctx, documentID, vector)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyComplete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockComposer struct {
	mock.Mock
}

func (m *MockComposer) AnswerFromContext(ctx context.Context, question, docContent string) (string, error) {
	args := m.Called(ctx, question, docContent)
	return args.String(0), args.Error(1)
}

type MockTicketFiler struct {
	mock.Mock
}

func (m *MockTicketFiler) FileTicket(ctx context.Context, summary, description string) (string, error) {
	args := m.Called(ctx, summary, description)
	return args.String(0), args.Error(1)
}

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) UserName(ctx context.Context, userID string) string {
	args := m.Called(ctx, userID)
	return args.String(0)
}

func (m *MockMessenger) Reply(ctx context.Context, q *domain.Query, text string) error {
	args := m.Called(ctx, q, text)
	return args.Error(0)
}
