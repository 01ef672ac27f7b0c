package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

// Все мутации складских счётчиков выполняются в транзакции с блокировкой
// строки инвентаря (SELECT ... FOR UPDATE): конкурентные резервы одного
// товара сериализуются на уровне строки.
//
// Сама арифметика счётчиков вынесена в чистые функции apply*: они меняют
// только запись в памяти и проверяют предусловия, запись в БД и журнал
// движений остаются на вызывающем коде.

func applyReserve(rec *model.InventoryRecord, quantity int64) error {
	if rec.AvailableStock() < quantity {
		return fmt.Errorf("%w: product %d has %d available, requested %d",
			ErrInsufficientStock, rec.ProductID, rec.AvailableStock(), quantity)
	}
	rec.ReservedStock += quantity
	return nil
}

func applyRelease(rec *model.InventoryRecord, quantity int64) {
	rec.ReservedStock -= min(quantity, rec.ReservedStock)
}

func applyConsume(rec *model.InventoryRecord, quantity int64, now time.Time) error {
	if rec.AvailableStock() < quantity {
		return fmt.Errorf("%w: product %d has %d available, requested %d",
			ErrInsufficientStock, rec.ProductID, rec.AvailableStock(), quantity)
	}
	rec.CurrentStock -= quantity
	rec.ReservedStock -= min(quantity, rec.ReservedStock)
	rec.LastSold = &now
	return nil
}

func applyReturn(rec *model.InventoryRecord, quantity int64) {
	rec.CurrentStock += quantity
}

func applyRestock(rec *model.InventoryRecord, quantity int64, now time.Time) {
	rec.CurrentStock += quantity
	rec.LastRestocked = &now
}

func applyDamage(rec *model.InventoryRecord, quantity int64) error {
	if rec.AvailableStock() < quantity {
		return fmt.Errorf("%w: product %d has %d available, requested %d",
			ErrInsufficientStock, rec.ProductID, rec.AvailableStock(), quantity)
	}
	rec.DamagedStock += quantity
	return nil
}

func applyAdjust(rec *model.InventoryRecord, delta int64) error {
	next := rec.CurrentStock + delta
	if next < 0 || next-rec.ReservedStock-rec.DamagedStock < 0 {
		return fmt.Errorf("%w: adjustment of %d would break availability for product %d",
			ErrInsufficientStock, delta, rec.ProductID)
	}
	rec.CurrentStock = next
	return nil
}

const inventoryColumns = `id, product_id, current_stock, reserved_stock, damaged_stock,
	 minimum_stock, reorder_point, maximum_stock, expiry_date, batch_number,
	 last_restocked, last_sold, created_at, updated_at`

func scanInventory(row pgx.Row) (*model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := row.Scan(
		&rec.ID, &rec.ProductID, &rec.CurrentStock, &rec.ReservedStock, &rec.DamagedStock,
		&rec.MinimumStock, &rec.ReorderPoint, &rec.MaximumStock, &rec.ExpiryDate, &rec.BatchNumber,
		&rec.LastRestocked, &rec.LastSold, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func lockInventory(ctx context.Context, tx pgx.Tx, productID int64) (*model.InventoryRecord, error) {
	rec, err := scanInventory(tx.QueryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE product_id = $1 FOR UPDATE`,
		productID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", ErrInventoryNotFound, productID)
		}
		return nil, fmt.Errorf("lock inventory: %w", err)
	}
	return rec, nil
}

func saveCounters(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error {
	err := tx.QueryRow(ctx,
		`UPDATE inventory
		 SET current_stock = $2,
		     reserved_stock = $3,
		     damaged_stock = $4,
		     last_restocked = $5,
		     last_sold = $6,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		rec.ID, rec.CurrentStock, rec.ReservedStock, rec.DamagedStock, rec.LastRestocked, rec.LastSold,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	return nil
}

func insertMovement(ctx context.Context, tx pgx.Tx, inventoryID int64, mt model.MovementType, quantity int64, refType string, refID *int64, notes string, stockAfter int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO stock_movements (inventory_id, movement_type, quantity, reference_type, reference_id, notes, stock_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inventoryID, string(mt), quantity, refType, refID, notes, stockAfter,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// mutateInventory выполняет одну атомарную операцию над счётчиками товара.
func (r *PostgresRepository) mutateInventory(ctx context.Context, productID int64, fn func(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error) (*model.InventoryRecord, error) {
	var result *model.InventoryRecord

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		rec, err := lockInventory(ctx, tx, productID)
		if err != nil {
			return err
		}

		if err := fn(ctx, tx, rec); err != nil {
			return err
		}

		if err := saveCounters(ctx, tx, rec); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Reserve резервирует количество под заказ, не уменьшая физический остаток.
// Возвращает ErrInsufficientStock, если доступного остатка не хватает.
func (r *PostgresRepository) Reserve(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error) {
	return r.mutateInventory(ctx, productID, func(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error {
		return applyReserve(rec, quantity)
	})
}

// Release снимает резерв, но не больше текущего зарезервированного количества.
func (r *PostgresRepository) Release(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error) {
	return r.mutateInventory(ctx, productID, func(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error {
		applyRelease(rec, quantity)
		return nil
	})
}

// Consume списывает физический остаток вместе с резервом и пишет движение sale.
func (r *PostgresRepository) Consume(ctx context.Context, productID, quantity int64, refID *int64) (*model.InventoryRecord, error) {
	return r.mutateInventory(ctx, productID, func(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error {
		return consumeLocked(ctx, tx, rec, quantity, refID)
	})
}

func consumeLocked(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord, quantity int64, refID *int64) error {
	if err := applyConsume(rec, quantity, nowUTC()); err != nil {
		return err
	}

	return insertMovement(ctx, tx, rec.ID, model.MovementSale, -quantity, "order", refID,
		fmt.Sprintf("sold %d units", quantity), rec.CurrentStock)
}

// Restock увеличивает физический остаток и пишет движение purchase.
func (r *PostgresRepository) Restock(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error) {
	return r.mutateInventory(ctx, productID, func(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error {
		applyRestock(rec, quantity, nowUTC())

		return insertMovement(ctx, tx, rec.ID, model.MovementPurchase, quantity, "restock", nil, notes, rec.CurrentStock)
	})
}

// ReportDamage переводит количество из доступного остатка в повреждённый.
func (r *PostgresRepository) ReportDamage(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error) {
	return r.mutateInventory(ctx, productID, func(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error {
		if err := applyDamage(rec, quantity); err != nil {
			return err
		}

		return insertMovement(ctx, tx, rec.ID, model.MovementDamage, -quantity, "damage", nil, notes, rec.CurrentStock)
	})
}

// Adjust выполняет ручную корректировку физического остатка на delta единиц.
// Корректировка не может нарушить инвариант доступности.
func (r *PostgresRepository) Adjust(ctx context.Context, productID, delta int64, notes string) (*model.InventoryRecord, error) {
	return r.mutateInventory(ctx, productID, func(ctx context.Context, tx pgx.Tx, rec *model.InventoryRecord) error {
		if err := applyAdjust(rec, delta); err != nil {
			return err
		}

		return insertMovement(ctx, tx, rec.ID, model.MovementAdjustment, delta, "adjustment", nil, notes, rec.CurrentStock)
	})
}

// GetInventoryByProduct возвращает складскую запись по товару.
func (r *PostgresRepository) GetInventoryByProduct(ctx context.Context, productID int64) (*model.InventoryRecord, error) {
	rec, err := scanInventory(r.pool.QueryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE product_id = $1`,
		productID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", ErrInventoryNotFound, productID)
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	return rec, nil
}

// ListInventories возвращает складские записи всех товаров для фонового обхода.
func (r *PostgresRepository) ListInventories(ctx context.Context) ([]model.InventoryRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+inventoryColumns+` FROM inventory ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select inventories: %w", err)
	}
	defer rows.Close()

	var res []model.InventoryRecord
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		res = append(res, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetMovements возвращает журнал движений по товару, новые записи первыми.
func (r *PostgresRepository) GetMovements(ctx context.Context, productID int64, limit int) ([]model.StockMovement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.inventory_id, m.movement_type, m.quantity, m.reference_type,
		        m.reference_id, m.notes, m.stock_after, m.created_at
		 FROM stock_movements m
		 JOIN inventory i ON i.id = m.inventory_id
		 WHERE i.product_id = $1
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	defer rows.Close()

	var res []model.StockMovement
	for rows.Next() {
		var m model.StockMovement
		var mt string
		if err := rows.Scan(&m.ID, &m.InventoryID, &mt, &m.Quantity, &m.ReferenceType,
			&m.ReferenceID, &m.Notes, &m.StockAfter, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.MovementType = model.MovementType(mt)
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
