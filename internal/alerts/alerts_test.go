package alerts

import (
	"testing"
	"time"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

func baseRecord() model.InventoryRecord {
	return model.InventoryRecord{
		ID:           7,
		ProductID:    3,
		MinimumStock: 10,
		ReorderPoint: 20,
		MaximumStock: 1000,
	}
}

func alertTypes(alerts []model.StockAlert) []model.AlertType {
	types := make([]model.AlertType, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.AlertType)
	}
	return types
}

func TestEvaluateThresholds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		current      int64
		reserved     int64
		damaged      int64
		wantTypes    []model.AlertType
		wantPriority model.AlertPriority
	}{
		{"out of stock", 0, 0, 0, []model.AlertType{model.AlertOutOfStock}, model.PriorityUrgent},
		{"fully reserved counts as out of stock", 5, 5, 0, []model.AlertType{model.AlertOutOfStock}, model.PriorityUrgent},
		{"low stock boundary", 10, 0, 0, []model.AlertType{model.AlertLowStock}, model.PriorityHigh},
		{"low stock with damage", 13, 0, 5, []model.AlertType{model.AlertLowStock}, model.PriorityHigh},
		{"reorder due", 20, 0, 0, []model.AlertType{model.AlertReorderDue}, model.PriorityMedium},
		{"healthy", 100, 10, 0, nil, ""},
		{"overstock", 1000, 0, 0, []model.AlertType{model.AlertOverstock}, model.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord()
			rec.CurrentStock = tt.current
			rec.ReservedStock = tt.reserved
			rec.DamagedStock = tt.damaged

			got := Evaluate(rec, now)

			if len(got) != len(tt.wantTypes) {
				t.Fatalf("Evaluate() returned %v, want types %v", alertTypes(got), tt.wantTypes)
			}
			for i, wt := range tt.wantTypes {
				if got[i].AlertType != wt {
					t.Errorf("alert[%d].AlertType = %q, want %q", i, got[i].AlertType, wt)
				}
				if got[i].Priority != tt.wantPriority {
					t.Errorf("alert[%d].Priority = %q, want %q", i, got[i].Priority, tt.wantPriority)
				}
				if !got[i].IsActive {
					t.Errorf("alert[%d] must be active", i)
				}
				if got[i].InventoryID != rec.ID {
					t.Errorf("alert[%d].InventoryID = %d, want %d", i, got[i].InventoryID, rec.ID)
				}
			}
		})
	}
}

func TestEvaluateExpiringSoon(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := baseRecord()
	rec.CurrentStock = 100

	expiry := now.Add(5 * 24 * time.Hour)
	rec.ExpiryDate = &expiry

	got := Evaluate(rec, now)
	if len(got) != 1 || got[0].AlertType != model.AlertExpiringSoon {
		t.Fatalf("Evaluate() = %v, want single expiring_soon", alertTypes(got))
	}
	if got[0].Priority != model.PriorityHigh {
		t.Errorf("priority = %q, want high", got[0].Priority)
	}

	// Истечение срока не зависит от уровня остатков.
	rec.CurrentStock = 10
	got = Evaluate(rec, now)
	if len(got) != 2 {
		t.Fatalf("Evaluate() = %v, want low_stock and expiring_soon", alertTypes(got))
	}

	// Далёкий срок годности не даёт оповещения.
	farExpiry := now.Add(30 * 24 * time.Hour)
	rec = baseRecord()
	rec.CurrentStock = 100
	rec.ExpiryDate = &farExpiry
	if got := Evaluate(rec, now); len(got) != 0 {
		t.Fatalf("Evaluate() = %v, want none", alertTypes(got))
	}
}

func TestEvaluateIsPure(t *testing.T) {
	now := time.Now()
	rec := baseRecord()
	rec.CurrentStock = 5

	first := Evaluate(rec, now)
	second := Evaluate(rec, now)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one alert per evaluation, got %d and %d", len(first), len(second))
	}
	if first[0].AlertType != second[0].AlertType || first[0].Message != second[0].Message {
		t.Errorf("evaluation must be deterministic: %+v vs %+v", first[0], second[0])
	}
}
