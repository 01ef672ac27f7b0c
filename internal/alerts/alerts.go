// Package alerts содержит вычисление складских оповещений по порогам остатков.
package alerts

import (
	"fmt"
	"time"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

// expiryWindow — горизонт, за который товар считается скоро истекающим.
const expiryWindow = 7 * 24 * time.Hour

// Evaluate вычисляет оповещения для одной складской записи.
// Функция чистая: не обращается к хранилищу и не знает про уже созданные
// оповещения, дедупликация выполняется на уровне репозитория.
func Evaluate(rec model.InventoryRecord, now time.Time) []model.StockAlert {
	var res []model.StockAlert

	available := rec.AvailableStock()

	switch {
	case available <= 0:
		res = append(res, newAlert(rec, model.AlertOutOfStock, model.PriorityUrgent,
			fmt.Sprintf("out of stock: %d available", available)))
	case available <= rec.MinimumStock:
		res = append(res, newAlert(rec, model.AlertLowStock, model.PriorityHigh,
			fmt.Sprintf("low stock: %d available, minimum is %d", available, rec.MinimumStock)))
	case available <= rec.ReorderPoint:
		res = append(res, newAlert(rec, model.AlertReorderDue, model.PriorityMedium,
			fmt.Sprintf("reorder due: %d available, reorder point is %d", available, rec.ReorderPoint)))
	}

	if rec.MaximumStock > 0 && available >= rec.MaximumStock {
		res = append(res, newAlert(rec, model.AlertOverstock, model.PriorityLow,
			fmt.Sprintf("overstock: %d available, maximum is %d", available, rec.MaximumStock)))
	}

	// Срок годности проверяется независимо от уровня остатков.
	if rec.ExpiryDate != nil && !now.After(*rec.ExpiryDate) && rec.ExpiryDate.Sub(now) <= expiryWindow {
		res = append(res, newAlert(rec, model.AlertExpiringSoon, model.PriorityHigh,
			fmt.Sprintf("expiring soon: expiry date %s", rec.ExpiryDate.Format("2006-01-02"))))
	}

	return res
}

func newAlert(rec model.InventoryRecord, at model.AlertType, p model.AlertPriority, msg string) model.StockAlert {
	return model.StockAlert{
		InventoryID: rec.ID,
		AlertType:   at,
		Priority:    p,
		Message:     msg,
		IsActive:    true,
	}
}
