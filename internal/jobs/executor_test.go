package jobs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPermanent = errors.New("permanent failure")

func newTestExecutor(t *testing.T, concurrency, maxRetries int) *Executor {
	t.Helper()
	exec, err := NewExecutor(concurrency, maxRetries)
	require.NoError(t, err)
	t.Cleanup(exec.Release)
	return exec
}

func TestExecutor_AllItemsComplete(t *testing.T) {
	exec := newTestExecutor(t, 4, 3)

	var completed atomic.Int32
	items := make([]Item, 100)
	for i := range items {
		items[i] = Item{
			ID: fmt.Sprintf("item-%d", i),
			Fn: func(ctx context.Context) error {
				completed.Add(1)
				return nil
			},
		}
	}

	failed := exec.Run(context.Background(), items)

	assert.Empty(t, failed)
	assert.Equal(t, int32(100), completed.Load())
}

func TestExecutor_PermanentFailuresDoNotAbortBatch(t *testing.T) {
	exec := newTestExecutor(t, 8, 3)

	var completed atomic.Int32
	items := make([]Item, 50)
	for i := range items {
		i := i
		items[i] = Item{
			ID: fmt.Sprintf("item-%d", i),
			Fn: func(ctx context.Context) error {
				completed.Add(1)
				if i%5 == 0 {
					return errPermanent
				}
				return nil
			},
		}
	}

	failed := exec.Run(context.Background(), items)

	// 10 of 50 fail permanently; the executor still completes every item and
	// the failure list length equals the permanent-failure count.
	assert.Len(t, failed, 10)
	assert.Equal(t, int32(50), completed.Load())
}

func TestExecutor_TransientErrorRetried(t *testing.T) {
	exec := newTestExecutor(t, 2, 3)

	var attempts atomic.Int32
	transient := &net.DNSError{Err: "no such host", Name: "api.openai.com", IsNotFound: true}

	items := []Item{{
		ID: "flaky",
		Fn: func(ctx context.Context) error {
			if attempts.Add(1) < 3 {
				return transient
			}
			return nil
		},
	}}

	failed := exec.Run(context.Background(), items)

	assert.Empty(t, failed)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestExecutor_TransientRetriesExhausted(t *testing.T) {
	exec := newTestExecutor(t, 2, 3)

	var attempts atomic.Int32
	transient := &net.DNSError{Err: "no such host", Name: "api.openai.com"}

	items := []Item{{
		ID: "doomed",
		Fn: func(ctx context.Context) error {
			attempts.Add(1)
			return transient
		},
	}}

	failed := exec.Run(context.Background(), items)

	// 1 initial attempt + 3 retries, then demoted to permanent.
	assert.Equal(t, []string{"doomed"}, failed)
	assert.Equal(t, int32(4), attempts.Load())
}

func TestExecutor_PermanentErrorNotRetried(t *testing.T) {
	exec := newTestExecutor(t, 2, 3)

	var attempts atomic.Int32
	items := []Item{{
		ID: "broken",
		Fn: func(ctx context.Context) error {
			attempts.Add(1)
			return errPermanent
		},
	}}

	failed := exec.Run(context.Background(), items)

	assert.Equal(t, []string{"broken"}, failed)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestExecutor_ConcurrencyBounded(t *testing.T) {
	const limit = 5
	exec := newTestExecutor(t, limit, 0)

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	gate := make(chan struct{})

	items := make([]Item, 30)
	for i := range items {
		items[i] = Item{
			ID: fmt.Sprintf("item-%d", i),
			Fn: func(ctx context.Context) error {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				<-gate

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			},
		}
	}

	done := make(chan []string, 1)
	go func() { done <- exec.Run(context.Background(), items) }()

	close(gate)
	failed := <-done

	assert.Empty(t, failed)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, limit)
}

func TestExecutor_CustomClassifier(t *testing.T) {
	retryMe := errors.New("retry me")
	exec, err := NewExecutorWithClassifier(2, 1, func(err error) bool {
		return errors.Is(err, retryMe)
	})
	require.NoError(t, err)
	defer exec.Release()

	var attempts atomic.Int32
	failed := exec.Run(context.Background(), []Item{{
		ID: "custom",
		Fn: func(ctx context.Context) error {
			attempts.Add(1)
			return retryMe
		},
	}})

	assert.Equal(t, []string{"custom"}, failed)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestExecutor_EmptyBatch(t *testing.T) {
	exec := newTestExecutor(t, 2, 3)
	assert.Empty(t, exec.Run(context.Background(), nil))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"dns error", &net.DNSError{Err: "no such host"}, true},
		{"wrapped dns error", fmt.Errorf("fetch: %w", &net.DNSError{Err: "no such host"}), true},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"connection reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"closed connection", &net.OpError{Op: "read", Err: errors.New("use of closed network connection")}, false},
		{"rate limited api error", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"server api error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"invalid request api error", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"rate limited request error", &openai.RequestError{HTTPStatusCode: http.StatusTooManyRequests, Err: errors.New("too many requests")}, true},
		{"unauthorized request error", &openai.RequestError{HTTPStatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}, false},
		{"plain error", errors.New("status 500"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
