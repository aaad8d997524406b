package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultConcurrency caps how many item operations run at once.
	DefaultConcurrency = 50
	// DefaultMaxRetries is the retry budget for transient failures.
	DefaultMaxRetries = 3
)

// Item is one unit of work submitted to the Executor. ID only identifies the
// item in the failure list; Fn does the actual work.
type Item struct {
	ID string
	Fn func(ctx context.Context) error
}

// Classifier decides whether an error is transient and worth retrying.
type Classifier func(error) bool

// Executor fans a batch of items out over a bounded worker pool. A transient
// failure is retried immediately up to the retry budget; a permanent failure
// marks the item failed and never aborts the rest of the batch.
type Executor struct {
	pool        *ants.Pool
	maxRetries  int
	isTransient Classifier
}

// NewExecutor creates an Executor with the given concurrency cap and retry
// budget, using IsTransient as the retry classifier.
func NewExecutor(concurrency, maxRetries int) (*Executor, error) {
	return NewExecutorWithClassifier(concurrency, maxRetries, IsTransient)
}

// NewExecutorWithClassifier creates an Executor with a custom transient-error
// classifier (for testing).
func NewExecutorWithClassifier(concurrency, maxRetries int, classifier Classifier) (*Executor, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if classifier == nil {
		classifier = IsTransient
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Executor{
		pool:        pool,
		maxRetries:  maxRetries,
		isTransient: classifier,
	}, nil
}

// Run executes all items and returns the IDs of items that permanently
// failed. It returns only after every item has completed; completion order
// between items is not defined.
func (e *Executor) Run(ctx context.Context, items []Item) []string {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)

	for _, item := range items {
		item := item
		wg.Add(1)

		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			if err := e.runItem(ctx, item); err != nil {
				log.Printf("batch item %s failed permanently: %v", item.ID, err)
				mu.Lock()
				failed = append(failed, item.ID)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			// Pool released or overloaded; the item still counts as failed
			// rather than silently dropped.
			log.Printf("batch item %s could not be scheduled: %v", item.ID, submitErr)
			mu.Lock()
			failed = append(failed, item.ID)
			mu.Unlock()
			wg.Done()
		}
	}

	wg.Wait()
	return failed
}

// runItem runs one item with an explicit bounded retry loop. Attempt count is
// 1 + maxRetries; retries are immediate, with no backoff.
func (e *Executor) runItem(ctx context.Context, item Item) error {
	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		err = item.Fn(ctx)
		if err == nil {
			return nil
		}
		if !e.isTransient(err) {
			return err
		}
		if attempt < e.maxRetries {
			log.Printf("batch item %s transient failure, retrying (%d/%d): %v",
				item.ID, attempt+1, e.maxRetries, err)
		}
	}
	return fmt.Errorf("max retries exceeded: %w", err)
}

// Release shuts the worker pool down. The Executor must not be used after
// calling Release.
func (e *Executor) Release() {
	e.pool.Release()
}
