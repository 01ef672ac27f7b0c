package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

const deliveryColumns = `id, order_id, tracking_number, status, recipient_name, recipient_phone,
	 delivery_address, estimated_delivery, delivered_at, created_at, updated_at`

func scanDelivery(row pgx.Row) (*model.Delivery, error) {
	var d model.Delivery
	var status string
	err := row.Scan(
		&d.ID, &d.OrderID, &d.TrackingNumber, &status, &d.RecipientName, &d.RecipientPhone,
		&d.DeliveryAddress, &d.EstimatedDelivery, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = model.DeliveryStatus(status)
	return &d, nil
}

// createDelivery создаёт запись доставки при переходе заказа в shipped.
func createDelivery(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	var recipient string
	err := tx.QueryRow(ctx, `SELECT login FROM users WHERE id = $1`, order.CustomerID).Scan(&recipient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: customer %d", ErrUserNotFound, order.CustomerID)
		}
		return fmt.Errorf("select customer: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO deliveries (order_id, tracking_number, status, recipient_name, recipient_phone, delivery_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, uuid.NewString(), string(model.DeliveryStatusPending),
		recipient, order.CustomerPhone, order.DeliveryAddress,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	return nil
}

// GetDeliveryByTracking возвращает доставку по трек-номеру.
func (r *PostgresRepository) GetDeliveryByTracking(ctx context.Context, trackingNumber string) (*model.Delivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE tracking_number = $1`,
		trackingNumber,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: tracking %s", ErrDeliveryNotFound, trackingNumber)
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

// GetDeliveryStatusUpdates возвращает историю статусов доставки, новые записи первыми.
func (r *PostgresRepository) GetDeliveryStatusUpdates(ctx context.Context, deliveryID int64) ([]model.DeliveryStatusUpdate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, delivery_id, old_status, new_status, updated_by, notes, created_at
		 FROM delivery_status_updates
		 WHERE delivery_id = $1
		 ORDER BY created_at DESC, id DESC`,
		deliveryID,
	)
	if err != nil {
		return nil, fmt.Errorf("select delivery updates: %w", err)
	}
	defer rows.Close()

	var res []model.DeliveryStatusUpdate
	for rows.Next() {
		var u model.DeliveryStatusUpdate
		var oldStatus, newStatus string
		if err := rows.Scan(&u.ID, &u.DeliveryID, &oldStatus, &newStatus, &u.UpdatedBy, &u.Notes, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery update: %w", err)
		}
		u.OldStatus = model.DeliveryStatus(oldStatus)
		u.NewStatus = model.DeliveryStatus(newStatus)
		res = append(res, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateDeliveryStatus переводит доставку в новый статус через таблицу переходов
// доставок и пишет запись истории. Переход в delivered дополнительно фиксирует
// время вручения и переводит заказ из shipped в delivered.
// Второй результат — обновлённый заказ, если переход затронул и его.
func (r *PostgresRepository) UpdateDeliveryStatus(ctx context.Context, deliveryID int64, newStatus model.DeliveryStatus, updatedBy, notes string) (*model.Delivery, *model.Order, error) {
	var (
		resultDelivery *model.Delivery
		resultOrder    *model.Order
	)

	err := r.withRetry(ctx, func() error {
		resultOrder = nil

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		d, err := scanDelivery(tx.QueryRow(ctx,
			`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`,
			deliveryID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: delivery %d", ErrDeliveryNotFound, deliveryID)
			}
			return fmt.Errorf("lock delivery: %w", err)
		}

		if !model.ValidDeliveryTransition(d.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, newStatus)
		}

		oldStatus := d.Status

		err = tx.QueryRow(ctx,
			`UPDATE deliveries
			 SET status = $2,
			     delivered_at = CASE WHEN $2 = 'delivered' THEN now() ELSE delivered_at END,
			     updated_at = now()
			 WHERE id = $1
			 RETURNING delivered_at, updated_at`,
			deliveryID, string(newStatus),
		).Scan(&d.DeliveredAt, &d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}
		d.Status = newStatus

		_, err = tx.Exec(ctx,
			`INSERT INTO delivery_status_updates (delivery_id, old_status, new_status, updated_by, notes)
			 VALUES ($1, $2, $3, $4, $5)`,
			deliveryID, string(oldStatus), string(newStatus), updatedBy, notes,
		)
		if err != nil {
			return fmt.Errorf("insert delivery update: %w", err)
		}

		// Вручение доставки завершает и сам заказ.
		if newStatus == model.DeliveryStatusDelivered {
			order, err := scanOrder(tx.QueryRow(ctx,
				`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`,
				d.OrderID,
			))
			if err != nil {
				return fmt.Errorf("lock order: %w", err)
			}

			if model.ValidOrderTransition(order.Status, model.OrderStatusDelivered) {
				err = tx.QueryRow(ctx,
					`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
					order.ID, string(model.OrderStatusDelivered),
				).Scan(&order.UpdatedAt)
				if err != nil {
					return fmt.Errorf("update order: %w", err)
				}
				order.Status = model.OrderStatusDelivered

				if err := insertHistory(ctx, tx, order.ID, model.OrderStatusDelivered,
					fmt.Sprintf("delivery %s completed", d.TrackingNumber)); err != nil {
					return err
				}

				items, err := loadOrderItems(ctx, tx, order.ID)
				if err != nil {
					return err
				}
				order.Items = items
				resultOrder = order
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		resultDelivery = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return resultDelivery, resultOrder, nil
}
