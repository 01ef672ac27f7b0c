package repository

import (
	"testing"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

func TestPaymentNote(t *testing.T) {
	tests := []struct {
		status model.PaymentStatus
		want   string
	}{
		{model.PaymentStatusPaid, "payment status changed to paid"},
		{model.PaymentStatusFailed, "payment status changed to failed"},
		{model.PaymentStatusRefunded, "payment status changed to refunded"},
	}

	for _, tt := range tests {
		if got := paymentNote(tt.status); got != tt.want {
			t.Fatalf("paymentNote(%s) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestSortedByProduct(t *testing.T) {
	items := []OrderDraftItem{
		{ProductID: 9, Quantity: 1},
		{ProductID: 2, Quantity: 5},
		{ProductID: 5, Quantity: 3},
	}

	sorted := sortedByProduct(items)

	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].ProductID > sorted[i].ProductID {
			t.Fatalf("items not sorted by product id: %v", sorted)
		}
	}
	if items[0].ProductID != 9 {
		t.Fatalf("input slice mutated: %v", items)
	}
}
