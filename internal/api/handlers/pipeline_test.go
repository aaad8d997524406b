package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/curio-labs/curiobot/internal/pipeline"
)

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) State() pipeline.State {
	args := m.Called()
	return args.Get(0).(pipeline.State)
}

func (m *MockCoordinator) ScrapingComplete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCoordinator) EmbeddingComplete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestPipelineHandler_ScrapingComplete(t *testing.T) {
	coordinator := new(MockCoordinator)
	coordinator.On("ScrapingComplete", mock.Anything).Return(nil)
	coordinator.On("State").Return(pipeline.StateEmbedding)

	h := NewPipelineHandler(coordinator)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/notify/scraping-complete", nil)

	h.ScrapingComplete(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data StateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EMBEDDING", resp.Data.State)
}

func TestPipelineHandler_StaleSignalStillAcknowledged(t *testing.T) {
	coordinator := new(MockCoordinator)
	coordinator.On("EmbeddingComplete", mock.Anything).Return(errors.New("stage already left"))
	coordinator.On("State").Return(pipeline.StateServing)

	h := NewPipelineHandler(coordinator)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/notify/embedding-generation-complete", nil)

	h.EmbeddingComplete(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

type blockingRunner struct {
	mu     sync.Mutex
	runs   int
	readyC chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	close(r.readyC)
	return nil
}

func (r *blockingRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func TestStageHandler_StartRunsOnce(t *testing.T) {
	runner := &blockingRunner{readyC: make(chan struct{})}
	h := NewStageHandler("ingestion", runner)

	w := httptest.NewRecorder()
	h.Start(w, httptest.NewRequest(http.MethodPost, "/scrape-start", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "true")

	select {
	case <-runner.readyC:
	case <-time.After(time.Second):
		t.Fatal("stage run never started")
	}

	w = httptest.NewRecorder()
	h.Start(w, httptest.NewRequest(http.MethodPost, "/scrape-start", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "false")
	assert.Equal(t, 1, runner.runCount())
}

type recordingGate struct {
	calls int
}

func (g *recordingGate) AcceptQueries() { g.calls++ }

func TestBotHandler_Notify(t *testing.T) {
	gate := &recordingGate{}
	h := NewBotHandler(gate)

	w := httptest.NewRecorder()
	h.Notify(w, httptest.NewRequest(http.MethodPost, "/notify", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, gate.calls)

	h.Notify(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/notify", nil))
	assert.Equal(t, 2, gate.calls)
}
