package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

type batchRepo struct {
	domain.IdempotencyRepository

	mu      sync.Mutex
	results []int
	err     error
	calls   int
}

func (r *batchRepo) DeleteExpired(context.Context, time.Time, int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	if len(r.results) == 0 {
		return 0, nil
	}
	n := r.results[0]
	r.results = r.results[1:]
	return n, nil
}

func (r *batchRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestCleanupWorker_DeleteExpiredInBatches(t *testing.T) {
	repo := &batchRepo{results: []int{2, 2, 1}}

	deleted, err := NewCleanupWorker(repo, WithBatchSize(2)).DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 5, deleted)
	require.Equal(t, 3, repo.callCount())
}

func TestCleanupWorker_DeleteExpiredError(t *testing.T) {
	repo := &batchRepo{err: errors.New("db down")}

	deleted, err := NewCleanupWorker(repo).DeleteExpired(context.Background(), time.Now())
	require.Error(t, err)
	require.Zero(t, deleted)
}

func TestCleanupWorker_RemovesOnlyExpiredKeys(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	now := time.Now().UTC()

	_, err := repo.CreateProcessing(ctx, "old", "h1", now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.CreateProcessing(ctx, "fresh", "h2", now.Add(time.Hour))
	require.NoError(t, err)

	deleted, err := NewCleanupWorker(repo, WithBatchSize(1)).DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, err = repo.Get(ctx, "old")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "fresh")
	require.NoError(t, err)
}

func TestCleanupWorker_RunStopsOnContextCancel(t *testing.T) {
	repo := &batchRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.callCount() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop on context cancel")
	}
}
