package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func sampleNewOrder() domain.NewOrder {
	return domain.BuildNewOrder([]domain.NewOrderItem{
		{ProductID: 7, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{ProductID: 9, Quantity: 1, Price: decimal.RequireFromString("25.00")},
	})
}

func TestOrderStore_PostgresCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)

	created, err := orders.CreateOrder(ctx, sampleNewOrder())
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, created.Status)
	require.False(t, created.Paid)
	require.True(t, created.TotalAmount.Equal(decimal.RequireFromString("45.00")))
	require.Equal(t, 3, created.TotalItems)
	require.Len(t, created.Items, 2)
	require.Equal(t, int64(7), created.Items[0].ProductID)
	require.Empty(t, created.ValidateInvariants())

	_, err = orders.GetOrder(ctx, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = orders.GetOrder(ctx, "not-a-uuid")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderStore_PostgresPagination(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)

	ids := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		created, err := orders.CreateOrder(ctx, sampleNewOrder())
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	total, err := orders.CountOrders(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 25, total)

	page, err := orders.ListOrders(ctx, domain.ListOrdersQuery{Offset: 10, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 10)
	for i, order := range page {
		require.Equal(t, ids[10+i], order.ID)
		require.Len(t, order.Items, 2)
	}

	_, err = orders.UpdateOrderStatus(ctx, ids[0], domain.OrderStatusCancelled)
	require.NoError(t, err)

	cancelled := domain.OrderStatusCancelled
	count, err := orders.CountOrders(ctx, &cancelled)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	filtered, err := orders.ListOrders(ctx, domain.ListOrdersQuery{Status: &cancelled, Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, ids[0], filtered[0].ID)
}

func TestOrderStore_PostgresUpdateStatusMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	_, err := NewOrderStore(store).UpdateOrderStatus(context.Background(), uuid.NewString(), domain.OrderStatusDelivered)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderStore_PostgresMarkPaidIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)

	created, err := orders.CreateOrder(ctx, sampleNewOrder())
	require.NoError(t, err)
	_, err = orders.UpdateOrderStatus(ctx, created.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)

	paid, err := orders.MarkPaid(ctx, domain.PaidUpdate{
		OrderID:          created.ID,
		ProviderChargeID: "ch_1",
		ReceiptURL:       "https://pay.example/r/1",
		PaidAt:           time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, paid.Paid)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, domain.OrderStatusPending, paid.Status)
	require.NotNil(t, paid.Receipt)

	again, err := orders.MarkPaid(ctx, domain.PaidUpdate{
		OrderID:          created.ID,
		ProviderChargeID: "ch_2",
		ReceiptURL:       "https://pay.example/r/2",
		PaidAt:           time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrOrderAlreadyPaid)
	require.Equal(t, "ch_1", again.ProviderChargeID)

	var receipts int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_receipts WHERE order_id = $1`, created.ID).Scan(&receipts))
	require.Equal(t, 1, receipts)

	_, err = orders.MarkPaid(ctx, domain.PaidUpdate{OrderID: uuid.NewString(), PaidAt: time.Now()})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestStore_PostgresPingAndClose(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, store.Ping(ctx))
	require.NotNil(t, store.DB())
	require.NoError(t, NewOrderStore(store).Ping(ctx))
}
