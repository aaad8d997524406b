// Package pipeline sequences the knowledge-base stages from first scrape to
// live query serving.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/curio-labs/curiobot/internal/domain"
)

// State is the coordinator's position in the pipeline. Transitions are
// monotonic and Serving is terminal.
type State int

const (
	StateInit State = iota
	StateIngesting
	StateEmbedding
	StateServing
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIngesting:
		return "INGESTING"
	case StateEmbedding:
		return "EMBEDDING"
	case StateServing:
		return "SERVING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stage is one controllable pipeline stage: it can be started and, once its
// work is done, released so it stops accepting start requests.
type Stage interface {
	Start(ctx context.Context) error
	Release(ctx context.Context) error
}

// ServingNotifier tells the query stage to begin accepting and draining.
type ServingNotifier interface {
	NotifyServing(ctx context.Context) error
}

// Coordinator is the pipeline state machine. Completion signals arrive over
// HTTP and may race or repeat; a mutex plus done flags keep every transition
// exactly-once and in order.
type Coordinator struct {
	ingest  Stage
	embed   Stage
	serving ServingNotifier

	mu            sync.Mutex
	state         State
	ingestionDone bool
	embeddingDone bool
}

func NewCoordinator(ingest, embed Stage, serving ServingNotifier) *Coordinator {
	return &Coordinator{
		ingest:  ingest,
		embed:   embed,
		serving: serving,
	}
}

// State returns the current pipeline state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin kicks the pipeline off: INIT becomes INGESTING and the ingestion
// stage is started. A start failure is logged, not fatal; the stage endpoint
// can be hit again manually.
func (c *Coordinator) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInit {
		c.mu.Unlock()
		return fmt.Errorf("%w: pipeline already started in state %s", domain.ErrStageAlreadyLeft, c.state)
	}
	c.state = StateIngesting
	c.mu.Unlock()

	log.Printf("pipeline: INIT -> INGESTING")
	if err := c.ingest.Start(ctx); err != nil {
		log.Printf("pipeline: failed to start ingestion stage: %v", err)
	}
	return nil
}

// ScrapingComplete handles the ingestion stage's completion signal:
// INGESTING becomes EMBEDDING, the ingestion stage is released and the
// embedding stage started. Signals in any other state are rejected.
func (c *Coordinator) ScrapingComplete(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIngesting {
		c.mu.Unlock()
		return fmt.Errorf("%w: scraping-complete in state %s", domain.ErrStageAlreadyLeft, c.state)
	}
	c.ingestionDone = true
	c.state = StateEmbedding
	c.mu.Unlock()

	log.Printf("pipeline: INGESTING -> EMBEDDING")
	if err := c.ingest.Release(ctx); err != nil {
		log.Printf("pipeline: failed to release ingestion stage: %v", err)
	}
	if err := c.embed.Start(ctx); err != nil {
		log.Printf("pipeline: failed to start embedding stage: %v", err)
	}
	return nil
}

// EmbeddingComplete handles the embedding stage's completion signal:
// EMBEDDING becomes SERVING, the embedding stage is released and the query
// stage told to drain. SERVING is terminal.
func (c *Coordinator) EmbeddingComplete(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateEmbedding {
		c.mu.Unlock()
		return fmt.Errorf("%w: embedding-complete in state %s", domain.ErrStageAlreadyLeft, c.state)
	}
	if !c.ingestionDone {
		c.mu.Unlock()
		return fmt.Errorf("%w: embedding-complete before ingestion finished", domain.ErrStageAlreadyLeft)
	}
	c.embeddingDone = true
	c.state = StateServing
	c.mu.Unlock()

	log.Printf("pipeline: EMBEDDING -> SERVING")
	if err := c.embed.Release(ctx); err != nil {
		log.Printf("pipeline: failed to release embedding stage: %v", err)
	}
	if err := c.serving.NotifyServing(ctx); err != nil {
		log.Printf("pipeline: failed to notify query stage: %v", err)
	}
	return nil
}
