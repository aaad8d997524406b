package service

import (
	"context"
	"log"
	"sync"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/curio-labs/curiobot/internal/telemetry"
)

const fallbackReply = "Sorry; something went wrong while handling your query. Please try again later."

// QueueProcessor buffers incoming queries and drains them in batches. Before
// AcceptQueries is called every query is held; afterwards a single drain
// loop owns the buffer, capturing and clearing it atomically so queries that
// arrive mid-drain land in the next batch.
type QueueProcessor struct {
	embedder  EmbedderClient
	answerer  *Answerer
	messenger Messenger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*domain.Query
	accepting bool
	draining  bool
}

func NewQueueProcessor(embedder EmbedderClient, answerer *Answerer, messenger Messenger) *QueueProcessor {
	p := &QueueProcessor{
		embedder:  embedder,
		answerer:  answerer,
		messenger: messenger,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Enqueue buffers a query and kicks the drain loop if one is not already
// running. Safe for concurrent use.
func (p *QueueProcessor) Enqueue(q *domain.Query) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = append(p.queue, q)
	if p.accepting && !p.draining {
		p.draining = true
		go p.drain()
	}
}

// AcceptQueries opens the queue for processing. Queries buffered before this
// point are drained immediately.
func (p *QueueProcessor) AcceptQueries() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accepting = true
	if len(p.queue) > 0 && !p.draining {
		p.draining = true
		go p.drain()
	}
}

// Flush blocks until the buffer is empty and no drain loop is running.
func (p *QueueProcessor) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.draining || (p.accepting && len(p.queue) > 0) {
		p.cond.Wait()
	}
}

// drain repeatedly captures and clears the buffer. Batches run in arrival
// order; queries within a batch resolve concurrently, and the next batch
// starts only after every query in the current one has finished. Exactly one
// drain loop runs at a time.
func (p *QueueProcessor) drain() {
	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		if len(batch) == 0 {
			p.draining = false
			p.cond.Broadcast()
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		log.Printf("queue: draining %d queries", len(batch))
		var wg sync.WaitGroup
		for _, q := range batch {
			q := q
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.process(q)
			}()
		}
		wg.Wait()
	}
}

// process resolves one query. Embedding failure leaves the vector nil so the
// matcher reports no match and the ticket path handles the query.
func (p *QueueProcessor) process(q *domain.Query) {
	ctx, span := telemetry.StartSpan(context.Background(), "QueueProcessor.process", telemetry.SpanAttributes{
		Channel:   q.Channel,
		Operation: "process",
	})
	defer span.End()

	vector, err := p.embedder.GenerateEmbedding(ctx, q.Text)
	if err != nil {
		log.Printf("queue: failed to embed query from %s: %v", q.UserID, err)
		telemetry.CaptureError(ctx, err)
	} else {
		q.Vector = vector
	}

	name := p.messenger.UserName(ctx, q.UserID)

	text, err := p.answerer.Resolve(ctx, q, name)
	if err != nil {
		log.Printf("queue: failed to resolve query from %s: %v", q.UserID, err)
		telemetry.CaptureError(ctx, err)
		text = fallbackReply
	}

	if err := p.messenger.Reply(ctx, q, text); err != nil {
		log.Printf("queue: failed to reply to %s: %v", q.UserID, err)
		telemetry.CaptureError(ctx, err)
	}
}
