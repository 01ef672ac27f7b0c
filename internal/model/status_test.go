package model

import "testing"

func TestValidOrderTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to confirmed", OrderStatusPending, OrderStatusConfirmed, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"confirmed to processing", OrderStatusConfirmed, OrderStatusProcessing, true},
		{"confirmed to cancelled", OrderStatusConfirmed, OrderStatusCancelled, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"processing to cancelled", OrderStatusProcessing, OrderStatusCancelled, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"pending to shipped", OrderStatusPending, OrderStatusShipped, false},
		{"pending to delivered", OrderStatusPending, OrderStatusDelivered, false},
		{"shipped to cancelled", OrderStatusShipped, OrderStatusCancelled, false},
		{"delivered to anything", OrderStatusDelivered, OrderStatusPending, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusConfirmed, false},
		{"self transition", OrderStatusPending, OrderStatusPending, false},
		{"unknown status", OrderStatus("packed"), OrderStatusShipped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidOrderTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidOrderTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidDeliveryTransition(t *testing.T) {
	tests := []struct {
		name string
		from DeliveryStatus
		to   DeliveryStatus
		want bool
	}{
		{"pending to assigned", DeliveryStatusPending, DeliveryStatusAssigned, true},
		{"assigned to picked_up", DeliveryStatusAssigned, DeliveryStatusPickedUp, true},
		{"picked_up to in_transit", DeliveryStatusPickedUp, DeliveryStatusInTransit, true},
		{"in_transit to out_for_delivery", DeliveryStatusInTransit, DeliveryStatusOutForDelivery, true},
		{"out_for_delivery to delivered", DeliveryStatusOutForDelivery, DeliveryStatusDelivered, true},
		{"in_transit to failed", DeliveryStatusInTransit, DeliveryStatusFailed, true},
		{"failed to returned", DeliveryStatusFailed, DeliveryStatusReturned, true},
		{"pending to delivered", DeliveryStatusPending, DeliveryStatusDelivered, false},
		{"pending to failed", DeliveryStatusPending, DeliveryStatusFailed, false},
		{"delivered is terminal", DeliveryStatusDelivered, DeliveryStatusReturned, false},
		{"returned is terminal", DeliveryStatusReturned, DeliveryStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidDeliveryTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidDeliveryTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAvailableStock(t *testing.T) {
	tests := []struct {
		name string
		rec  InventoryRecord
		want int64
	}{
		{"plain", InventoryRecord{CurrentStock: 10, ReservedStock: 3, DamagedStock: 1}, 6},
		{"fully reserved", InventoryRecord{CurrentStock: 5, ReservedStock: 5}, 0},
		{"never negative", InventoryRecord{CurrentStock: 2, ReservedStock: 2, DamagedStock: 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.AvailableStock(); got != tt.want {
				t.Errorf("AvailableStock() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOrderItemTotalCents(t *testing.T) {
	item := OrderItem{Quantity: 4, PriceCents: 2550}
	if got := item.TotalCents(); got != 10200 {
		t.Errorf("TotalCents() = %d, want 10200", got)
	}
}
