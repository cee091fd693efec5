package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	stored1, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "OrderCreated",
		Payload:       []byte(`{"id":"order-1"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored1.ID)

	fixedID := uuid.NewString()
	stored2, err := repo.Enqueue(ctx, domain.OutboxMessage{
		ID:            fixedID,
		AggregateType: "order",
		AggregateID:   "order-2",
		EventType:     "OrderStatusChanged",
	})
	require.NoError(t, err)
	require.Equal(t, fixedID, stored2.ID)

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(ctx, stored1.ID))
	require.NoError(t, repo.MarkFailed(ctx, stored2.ID))

	after, err := repo.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, after)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)

	require.ErrorIs(t, repo.MarkSent(ctx, uuid.NewString()), domain.ErrOutboxPublish)
	require.ErrorIs(t, repo.MarkSent(ctx, "not-a-uuid"), domain.ErrOutboxPublish)
}
