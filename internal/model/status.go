package model

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus описывает статус оплаты заказа, независимый от статуса обработки.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// DeliveryStatus описывает статус физической доставки заказа.
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "pending"
	DeliveryStatusAssigned       DeliveryStatus = "assigned"
	DeliveryStatusPickedUp       DeliveryStatus = "picked_up"
	DeliveryStatusInTransit      DeliveryStatus = "in_transit"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusFailed         DeliveryStatus = "failed"
	DeliveryStatusReturned       DeliveryStatus = "returned"
)

// Таблицы переходов. Легальность смены статуса проверяется только здесь,
// вызывающий код не сравнивает строки статусов напрямую.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:        {DeliveryStatusAssigned},
	DeliveryStatusAssigned:       {DeliveryStatusPickedUp, DeliveryStatusFailed},
	DeliveryStatusPickedUp:       {DeliveryStatusInTransit, DeliveryStatusFailed},
	DeliveryStatusInTransit:      {DeliveryStatusOutForDelivery, DeliveryStatusFailed},
	DeliveryStatusOutForDelivery: {DeliveryStatusDelivered, DeliveryStatusFailed},
	DeliveryStatusDelivered:      {},
	DeliveryStatusFailed:         {DeliveryStatusReturned},
	DeliveryStatusReturned:       {},
}

// ValidOrderStatus сообщает, известен ли статус заказа.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

// ValidOrderTransition сообщает, разрешён ли переход заказа из статуса from в to.
func ValidOrderTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidPaymentStatus сообщает, известен ли статус оплаты.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// ValidDeliveryStatus сообщает, известен ли статус доставки.
func ValidDeliveryStatus(s DeliveryStatus) bool {
	_, ok := deliveryTransitions[s]
	return ok
}

// ValidDeliveryTransition сообщает, разрешён ли переход доставки из статуса from в to.
func ValidDeliveryTransition(from, to DeliveryStatus) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
