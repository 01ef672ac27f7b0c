package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

// CreateAlertIfAbsent создаёт оповещение, если по паре (склад, тип) ещё нет
// нерешённого. Дедупликация выполняется частичным уникальным индексом,
// поэтому повторный прогон оценщика по неизменившемуся складу не плодит
// дубликатов. Возвращает true, если оповещение было создано.
func (r *PostgresRepository) CreateAlertIfAbsent(ctx context.Context, alert model.StockAlert) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO stock_alerts (inventory_id, alert_type, priority, message, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (inventory_id, alert_type) WHERE NOT is_resolved DO NOTHING`,
		alert.InventoryID, string(alert.AlertType), string(alert.Priority), alert.Message,
	)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListActiveAlerts возвращает активные нерешённые оповещения, новые первыми.
func (r *PostgresRepository) ListActiveAlerts(ctx context.Context) ([]model.StockAlert, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, inventory_id, alert_type, priority, message, is_active, is_resolved,
		        acknowledged_by, acknowledged_at, resolved_at, created_at
		 FROM stock_alerts
		 WHERE is_active AND NOT is_resolved
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	defer rows.Close()

	var res []model.StockAlert
	for rows.Next() {
		var a model.StockAlert
		var alertType, priority string
		if err := rows.Scan(&a.ID, &a.InventoryID, &alertType, &priority, &a.Message, &a.IsActive,
			&a.IsResolved, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolvedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.AlertType = model.AlertType(alertType)
		a.Priority = model.AlertPriority(priority)
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AcknowledgeAlert помечает оповещение как принятое к сведению.
func (r *PostgresRepository) AcknowledgeAlert(ctx context.Context, alertID int64, acknowledgedBy string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE stock_alerts
		 SET acknowledged_by = $2, acknowledged_at = now()
		 WHERE id = $1 AND NOT is_resolved`,
		alertID, acknowledgedBy,
	)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: alert %d", ErrAlertNotFound, alertID)
	}
	return nil
}

// ResolveAlert помечает оповещение решённым. Решённые оповещения не удаляются.
func (r *PostgresRepository) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE stock_alerts
		 SET is_resolved = TRUE,
		     is_active = FALSE,
		     resolved_at = now(),
		     acknowledged_by = CASE WHEN acknowledged_by = '' THEN $2 ELSE acknowledged_by END
		 WHERE id = $1 AND NOT is_resolved`,
		alertID, resolvedBy,
	)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: alert %d", ErrAlertNotFound, alertID)
	}
	return nil
}
