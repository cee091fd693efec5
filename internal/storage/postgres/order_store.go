package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const orderColumns = `
	o.id, o.total_amount, o.total_items, o.status, o.paid, o.paid_at, o.provider_charge_id,
	o.created_at, o.updated_at, r.id, r.receipt_url, r.created_at`

const orderFrom = `
	FROM orders o
	LEFT JOIN order_receipts r ON r.order_id = o.id`

type orderStore struct {
	store *Store
	now   func() time.Time
}

// NewOrderStore создаёт PostgreSQL-реализацию OrderStore.
func NewOrderStore(store *Store) domain.OrderStore {
	return &orderStore{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *orderStore) CreateOrder(ctx context.Context, input domain.NewOrder) (domain.Order, error) {
	if len(input.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	orderID := uuid.NewString()
	now := s.now()

	err := withTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, total_amount, total_items, status, paid, created_at, updated_at)
			VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		`, orderID, input.TotalAmount, input.TotalItems, string(domain.OrderStatusPending), now); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for position, item := range input.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, position, product_id, quantity, price)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.NewString(), orderID, position, item.ProductID, item.Quantity, item.Price); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return s.GetOrder(ctx, orderID)
}

func (s *orderStore) CountOrders(ctx context.Context, status *domain.OrderStatus) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE ($1::TEXT IS NULL OR status = $1)
	`, statusArg(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

func (s *orderStore) ListOrders(ctx context.Context, query domain.ListOrdersQuery) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.store.DB().QueryContext(ctx, `SELECT `+orderColumns+orderFrom+`
		WHERE ($1::TEXT IS NULL OR o.status = $1)
		ORDER BY o.created_at ASC, o.seq ASC
		OFFSET $2 LIMIT $3
	`, statusArg(query.Status), query.Offset, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, query.Limit)
	ids := make([]string, 0, query.Limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *orderStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(s.store.DB().QueryRowContext(ctx, `SELECT `+orderColumns+orderFrom+` WHERE o.id = $1`, id))
	if err != nil {
		return domain.Order{}, err
	}

	items, err := s.loadItems(ctx, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (s *orderStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.store.DB().ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), s.now())
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	return s.GetOrder(ctx, id)
}

// MarkPaid блокирует строку заказа, проверяет флаг оплаты и создаёт чек в той же транзакции.
func (s *orderStore) MarkPaid(ctx context.Context, update domain.PaidUpdate) (domain.Order, error) {
	if _, err := uuid.Parse(update.OrderID); err != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()
	err := withTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		var paid bool
		err := tx.QueryRowContext(ctx, `SELECT paid FROM orders WHERE id = $1 FOR UPDATE`, update.OrderID).Scan(&paid)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if paid {
			return domain.ErrOrderAlreadyPaid
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET paid = TRUE,
			    paid_at = $2,
			    provider_charge_id = $3,
			    status = $4,
			    updated_at = $5
			WHERE id = $1 AND paid = FALSE
		`, update.OrderID, update.PaidAt.UTC(), update.ProviderChargeID, string(domain.OrderStatusPending), now); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_receipts (id, order_id, receipt_url, created_at)
			VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), update.OrderID, update.ReceiptURL, now); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrOrderAlreadyPaid
			}
			return fmt.Errorf("insert order receipt: %w", err)
		}
		return nil
	})

	if errors.Is(err, domain.ErrOrderAlreadyPaid) {
		order, getErr := s.GetOrder(ctx, update.OrderID)
		if getErr != nil {
			return domain.Order{}, getErr
		}
		return order, domain.ErrOrderAlreadyPaid
	}
	if err != nil {
		return domain.Order{}, err
	}

	return s.GetOrder(ctx, update.OrderID)
}

func (s *orderStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *orderStore) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return result, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paidAt        sql.NullTime
		chargeID      sql.NullString
		receiptID     sql.NullString
		receiptURL    sql.NullString
		receiptCreate sql.NullTime
	)

	err := row.Scan(
		&order.ID, &order.TotalAmount, &order.TotalItems, &status, &order.Paid, &paidAt, &chargeID,
		&order.CreatedAt, &order.UpdatedAt, &receiptID, &receiptURL, &receiptCreate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.ProviderChargeID = chargeID.String
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		order.PaidAt = &t
	}
	if receiptID.Valid {
		order.Receipt = &domain.OrderReceipt{
			ID:         receiptID.String,
			OrderID:    order.ID,
			ReceiptURL: receiptURL.String,
			CreatedAt:  receiptCreate.Time.UTC(),
		}
	}
	return order, nil
}

func statusArg(status *domain.OrderStatus) any {
	if status == nil {
		return nil
	}
	return string(*status)
}

var _ domain.OrderStore = (*orderStore)(nil)
