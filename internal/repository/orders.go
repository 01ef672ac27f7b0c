package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

// OrderDraft описывает заявку на оформление заказа из корзины.
type OrderDraft struct {
	CustomerID      int64
	DeliveryAddress string
	CustomerPhone   string
	CustomerEmail   string
	Notes           string
	Items           []OrderDraftItem
}

// OrderDraftItem описывает позицию корзины.
type OrderDraftItem struct {
	ProductID int64
	Quantity  int64
}

const orderColumns = `id, customer_id, total_cents, status, payment_status,
	 delivery_address, customer_phone, customer_email, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status, paymentStatus string
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.TotalCents, &status, &paymentStatus,
		&o.DeliveryAddress, &o.CustomerPhone, &o.CustomerEmail, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	return &o, nil
}

// sortedByProduct возвращает копию позиций, отсортированную по идентификатору
// товара. Блокировка строк инвентаря в одном и том же порядке исключает
// дедлоки между конкурентными заказами.
func sortedByProduct(items []OrderDraftItem) []OrderDraftItem {
	sorted := make([]OrderDraftItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

// CreateOrder оформляет заказ: резервирует остатки по каждой позиции,
// фиксирует название и цену товара на момент заказа, создаёт заказ,
// его позиции и первую запись истории статусов. Всё или ничего: любая
// ошибка откатывает заказ вместе со всеми резервами.
func (r *PostgresRepository) CreateOrder(ctx context.Context, draft OrderDraft) (*model.Order, error) {
	var result *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var totalCents int64
		orderItems := make([]model.OrderItem, 0, len(draft.Items))

		for _, item := range sortedByProduct(draft.Items) {
			var name string
			var priceCents int64
			err := tx.QueryRow(ctx,
				`SELECT name, price_cents FROM products WHERE id = $1 AND is_active`,
				item.ProductID,
			).Scan(&name, &priceCents)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: product %d", ErrProductNotFound, item.ProductID)
				}
				return fmt.Errorf("select product: %w", err)
			}

			rec, err := lockInventory(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}
			if err := applyReserve(rec, item.Quantity); err != nil {
				return err
			}
			if err := saveCounters(ctx, tx, rec); err != nil {
				return err
			}

			totalCents += item.Quantity * priceCents
			orderItems = append(orderItems, model.OrderItem{
				ProductID:   item.ProductID,
				ProductName: name,
				Quantity:    item.Quantity,
				PriceCents:  priceCents,
			})
		}

		order := &model.Order{
			CustomerID:      draft.CustomerID,
			TotalCents:      totalCents,
			Status:          model.OrderStatusPending,
			PaymentStatus:   model.PaymentStatusPending,
			DeliveryAddress: draft.DeliveryAddress,
			CustomerPhone:   draft.CustomerPhone,
			CustomerEmail:   draft.CustomerEmail,
			Notes:           draft.Notes,
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (customer_id, total_cents, status, payment_status, delivery_address, customer_phone, customer_email, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, created_at, updated_at`,
			order.CustomerID, order.TotalCents, string(order.Status), string(order.PaymentStatus),
			order.DeliveryAddress, order.CustomerPhone, order.CustomerEmail, order.Notes,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range orderItems {
			orderItems[i].OrderID = order.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, quantity, price_cents)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				order.ID, orderItems[i].ProductID, orderItems[i].ProductName, orderItems[i].Quantity, orderItems[i].PriceCents,
			).Scan(&orderItems[i].ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		order.Items = orderItems

		if err := insertHistory(ctx, tx, order.ID, model.OrderStatusPending, "order placed"); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID int64, status model.OrderStatus, notes string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, notes) VALUES ($1, $2, $3)`,
		orderID, string(status), notes,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// StatusChange описывает результат перевода заказа в новый статус.
type StatusChange struct {
	Order     *model.Order
	OldStatus model.OrderStatus
	// Touched содержит складские записи, изменённые переходом.
	Touched []model.InventoryRecord
}

// UpdateOrderStatus переводит заказ в новый статус через таблицу переходов
// и применяет складской эффект перехода в той же транзакции:
// подтверждение списывает резерв в расход, отмена возвращает остатки.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, notes string) (*StatusChange, error) {
	var result *StatusChange

	err := r.withRetry(ctx, func() error {
		var touched []model.InventoryRecord

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		order, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`,
			orderID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: order %d", ErrOrderNotFound, orderID)
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !model.ValidOrderTransition(order.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
		}

		items, err := loadOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order.Items = items

		oldStatus := order.Status

		switch newStatus {
		case model.OrderStatusConfirmed:
			// Физическое списание происходит только при подтверждении:
			// до него заказ держит резерв и отмена не трогает current_stock.
			for _, item := range sortedItems(items) {
				rec, err := lockInventory(ctx, tx, item.ProductID)
				if err != nil {
					return err
				}
				if err := consumeLocked(ctx, tx, rec, item.Quantity, &orderID); err != nil {
					return err
				}
				if err := saveCounters(ctx, tx, rec); err != nil {
					return err
				}
				touched = append(touched, *rec)
			}

		case model.OrderStatusCancelled:
			if oldStatus == model.OrderStatusPending {
				// Резерв ещё не списан, возвращаем его в доступный остаток.
				for _, item := range sortedItems(items) {
					rec, err := lockInventory(ctx, tx, item.ProductID)
					if err != nil {
						return err
					}
					applyRelease(rec, item.Quantity)
					if err := saveCounters(ctx, tx, rec); err != nil {
						return err
					}
					touched = append(touched, *rec)
				}
			} else {
				// Остаток уже списан при подтверждении, оформляем возврат.
				for _, item := range sortedItems(items) {
					rec, err := lockInventory(ctx, tx, item.ProductID)
					if err != nil {
						return err
					}
					applyReturn(rec, item.Quantity)
					if err := insertMovement(ctx, tx, rec.ID, model.MovementReturn, item.Quantity, "order", &orderID,
						fmt.Sprintf("order %d cancelled", orderID), rec.CurrentStock); err != nil {
						return err
					}
					if err := saveCounters(ctx, tx, rec); err != nil {
						return err
					}
					touched = append(touched, *rec)
				}
			}

		case model.OrderStatusShipped:
			if err := createDelivery(ctx, tx, order); err != nil {
				return err
			}
		}

		err = tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
			orderID, string(newStatus),
		).Scan(&order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		order.Status = newStatus

		if err := insertHistory(ctx, tx, orderID, newStatus, notes); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = &StatusChange{Order: order, OldStatus: oldStatus, Touched: touched}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func sortedItems(items []model.OrderItem) []model.OrderItem {
	sorted := make([]model.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

// paymentNote формирует текст записи истории о смене статуса оплаты.
func paymentNote(status model.PaymentStatus) string {
	return fmt.Sprintf("payment status changed to %s", status)
}

// UpdatePaymentStatus меняет статус оплаты заказа и пишет заметку в историю
// статусов. Статус оплаты независим от статуса обработки и не проходит
// через таблицу переходов.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error) {
	var result *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		order, err := scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET payment_status = $2, updated_at = now()
			 WHERE id = $1
			 RETURNING `+orderColumns,
			orderID, string(status),
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: order %d", ErrOrderNotFound, orderID)
			}
			return fmt.Errorf("update payment status: %w", err)
		}

		if err := insertHistory(ctx, tx, orderID, order.Status, paymentNote(status)); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadOrderItems(ctx context.Context, q querier, orderID int64) ([]model.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, price_cents
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PriceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetOrder возвращает заказ с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		orderID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadOrderItems(ctx, r.pool, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// GetOrdersByCustomer возвращает заказы покупателя с позициями, новые первыми.
func (r *PostgresRepository) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		items, err := loadOrderItems(ctx, r.pool, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// GetOrderHistory возвращает историю статусов заказа, новые записи первыми.
func (r *PostgresRepository) GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, status, notes, changed_at
		 FROM order_status_history
		 WHERE order_id = $1
		 ORDER BY changed_at DESC, id DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select status history: %w", err)
	}
	defer rows.Close()

	var res []model.OrderStatusHistory
	for rows.Next() {
		var h model.OrderStatusHistory
		var status string
		if err := rows.Scan(&h.ID, &h.OrderID, &status, &h.Notes, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		h.Status = model.OrderStatus(status)
		res = append(res, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
