package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/curio-labs/curiobot/internal/domain"
)

type MockStage struct {
	mock.Mock
}

func (m *MockStage) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStage) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockServingNotifier struct {
	mock.Mock
}

func (m *MockServingNotifier) NotifyServing(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newTestCoordinator() (*Coordinator, *MockStage, *MockStage, *MockServingNotifier) {
	ingest := new(MockStage)
	embed := new(MockStage)
	serving := new(MockServingNotifier)
	return NewCoordinator(ingest, embed, serving), ingest, embed, serving
}

func TestCoordinator_HappyPath(t *testing.T) {
	c, ingest, embed, serving := newTestCoordinator()
	ctx := context.Background()

	ingest.On("Start", mock.Anything).Return(nil)
	ingest.On("Release", mock.Anything).Return(nil)
	embed.On("Start", mock.Anything).Return(nil)
	embed.On("Release", mock.Anything).Return(nil)
	serving.On("NotifyServing", mock.Anything).Return(nil)

	require.NoError(t, c.Begin(ctx))
	assert.Equal(t, StateIngesting, c.State())

	require.NoError(t, c.ScrapingComplete(ctx))
	assert.Equal(t, StateEmbedding, c.State())

	require.NoError(t, c.EmbeddingComplete(ctx))
	assert.Equal(t, StateServing, c.State())

	ingest.AssertNumberOfCalls(t, "Start", 1)
	ingest.AssertNumberOfCalls(t, "Release", 1)
	embed.AssertNumberOfCalls(t, "Start", 1)
	embed.AssertNumberOfCalls(t, "Release", 1)
	serving.AssertNumberOfCalls(t, "NotifyServing", 1)
}

func TestCoordinator_DoubleBeginRejected(t *testing.T) {
	c, ingest, _, _ := newTestCoordinator()
	ingest.On("Start", mock.Anything).Return(nil)

	require.NoError(t, c.Begin(context.Background()))
	err := c.Begin(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStageAlreadyLeft)
	ingest.AssertNumberOfCalls(t, "Start", 1)
}

func TestCoordinator_OutOfOrderSignalsRejected(t *testing.T) {
	c, ingest, embed, serving := newTestCoordinator()
	ctx := context.Background()

	// embedding-complete before anything has run
	err := c.EmbeddingComplete(ctx)
	require.ErrorIs(t, err, domain.ErrStageAlreadyLeft)
	assert.Equal(t, StateInit, c.State())

	// scraping-complete before Begin
	err = c.ScrapingComplete(ctx)
	require.ErrorIs(t, err, domain.ErrStageAlreadyLeft)

	ingest.AssertNotCalled(t, "Release", mock.Anything)
	embed.AssertNotCalled(t, "Start", mock.Anything)
	serving.AssertNotCalled(t, "NotifyServing", mock.Anything)
}

func TestCoordinator_RepeatedScrapingCompleteTriggersEmbeddingOnce(t *testing.T) {
	c, ingest, embed, _ := newTestCoordinator()
	ctx := context.Background()

	ingest.On("Start", mock.Anything).Return(nil)
	ingest.On("Release", mock.Anything).Return(nil)
	embed.On("Start", mock.Anything).Return(nil)

	require.NoError(t, c.Begin(ctx))
	require.NoError(t, c.ScrapingComplete(ctx))

	err := c.ScrapingComplete(ctx)
	require.ErrorIs(t, err, domain.ErrStageAlreadyLeft)

	embed.AssertNumberOfCalls(t, "Start", 1)
}

func TestCoordinator_ConcurrentSignalsExactlyOnce(t *testing.T) {
	c, ingest, embed, serving := newTestCoordinator()
	ctx := context.Background()

	ingest.On("Start", mock.Anything).Return(nil)
	ingest.On("Release", mock.Anything).Return(nil)
	embed.On("Start", mock.Anything).Return(nil)
	embed.On("Release", mock.Anything).Return(nil)
	serving.On("NotifyServing", mock.Anything).Return(nil)

	require.NoError(t, c.Begin(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.ScrapingComplete(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateEmbedding, c.State())
	embed.AssertNumberOfCalls(t, "Start", 1)
	ingest.AssertNumberOfCalls(t, "Release", 1)
}

func TestCoordinator_ServingIsTerminal(t *testing.T) {
	c, ingest, embed, serving := newTestCoordinator()
	ctx := context.Background()

	ingest.On("Start", mock.Anything).Return(nil)
	ingest.On("Release", mock.Anything).Return(nil)
	embed.On("Start", mock.Anything).Return(nil)
	embed.On("Release", mock.Anything).Return(nil)
	serving.On("NotifyServing", mock.Anything).Return(nil)

	require.NoError(t, c.Begin(ctx))
	require.NoError(t, c.ScrapingComplete(ctx))
	require.NoError(t, c.EmbeddingComplete(ctx))

	assert.ErrorIs(t, c.ScrapingComplete(ctx), domain.ErrStageAlreadyLeft)
	assert.ErrorIs(t, c.EmbeddingComplete(ctx), domain.ErrStageAlreadyLeft)
	assert.Equal(t, StateServing, c.State())
}

func TestHTTPStage_StartPostsToEndpoint(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		hits++
	}))
	t.Cleanup(srv.Close)

	released := false
	stage := NewHTTPStage("ingestion", srv.URL+"/scrape-start", func(ctx context.Context) error {
		released = true
		return nil
	})

	require.NoError(t, stage.Start(context.Background()))
	require.NoError(t, stage.Release(context.Background()))
	assert.Equal(t, 1, hits)
	assert.True(t, released)
}

func TestHTTPStage_StartFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	stage := NewHTTPStage("embedding", srv.URL+"/embeddings-start", nil)

	err := stage.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start stage embedding")
}

func TestHTTPNotifier_SignalsEndpoint(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	t.Cleanup(srv.Close)

	n := NewHTTPNotifier(srv.URL + "/notify/scraping-complete")
	require.NoError(t, n.NotifyComplete(context.Background()))
	require.NoError(t, n.NotifyServing(context.Background()))
	assert.Equal(t, 2, hits)
}
