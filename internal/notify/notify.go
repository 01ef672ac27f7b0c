// Package notify содержит диспетчер уведомлений о событиях заказа.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/farmarket-system/internal/model"
)

// Notifier описывает контракт внешнего отправителя уведомлений.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Dispatcher формирует письма по событиям заказа и передаёт их отправителю.
// Ошибка отправителя никогда не поднимается выше: состояние заказа уже
// зафиксировано, результат отправки возвращается флагом. Одна попытка
// на событие, ретраи — забота вызывающего.
type Dispatcher struct {
	notifier   Notifier
	logger     *zap.Logger
	adminEmail string
}

// NewDispatcher создаёт диспетчер уведомлений.
func NewDispatcher(notifier Notifier, logger *zap.Logger, adminEmail string) *Dispatcher {
	return &Dispatcher{
		notifier:   notifier,
		logger:     logger,
		adminEmail: adminEmail,
	}
}

var statusMessages = map[model.OrderStatus]string{
	model.OrderStatusConfirmed:  "Your order has been confirmed and is being prepared for dispatch.",
	model.OrderStatusProcessing: "Your order is being processed.",
	model.OrderStatusShipped:    "Your order has been dispatched and is on its way!",
	model.OrderStatusDelivered:  "Your order has been successfully delivered. Thank you for shopping with us!",
	model.OrderStatusCancelled:  "Your order has been cancelled. If you have any questions, please contact us.",
}

// OrderPlaced отправляет подтверждение оформления покупателю и уведомление
// администратору. Возвращает true, если обе отправки прошли успешно.
func (d *Dispatcher) OrderPlaced(ctx context.Context, order *model.Order) bool {
	if d.notifier == nil {
		return false
	}

	ok := true

	subject := fmt.Sprintf("Order Confirmation - Order #%d", order.ID)
	body := fmt.Sprintf(
		"Dear customer,\n\nYour order #%d has been placed successfully.\n\nTotal amount: %.2f\nDelivery address: %s\n\nYou will receive another email once your order is confirmed.\n\nThank you for shopping with Farmarket!",
		order.ID, float64(order.TotalCents)/100, order.DeliveryAddress,
	)
	if err := d.notifier.Send(ctx, order.CustomerEmail, subject, body); err != nil {
		d.logger.Warn("customer notification failed",
			zap.Error(err), zap.Int64("orderID", order.ID), zap.String("recipient", order.CustomerEmail))
		ok = false
	}

	if d.adminEmail != "" {
		adminSubject := fmt.Sprintf("New Order Received - Order #%d", order.ID)
		adminBody := fmt.Sprintf(
			"New order notification.\n\nOrder ID: #%d\nCustomer email: %s\nTotal amount: %.2f\nDelivery address: %s\n\nStatus: pending confirmation.",
			order.ID, order.CustomerEmail, float64(order.TotalCents)/100, order.DeliveryAddress,
		)
		if err := d.notifier.Send(ctx, d.adminEmail, adminSubject, adminBody); err != nil {
			d.logger.Warn("admin notification failed",
				zap.Error(err), zap.Int64("orderID", order.ID))
			ok = false
		}
	}

	return ok
}

// OrderStatusChanged отправляет покупателю письмо о смене статуса заказа.
// Возвращает true при успешной отправке.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, order *model.Order, oldStatus, newStatus model.OrderStatus) bool {
	if d.notifier == nil {
		return false
	}

	message, found := statusMessages[newStatus]
	if !found {
		message = fmt.Sprintf("Your order status has been updated to: %s.", newStatus)
	}

	subject := fmt.Sprintf("Order Status Update - Order #%d", order.ID)
	body := fmt.Sprintf(
		"Dear customer,\n\nOrder #%d: %s -> %s.\n\n%s\n\nThank you for choosing Farmarket!",
		order.ID, oldStatus, newStatus, message,
	)

	if err := d.notifier.Send(ctx, order.CustomerEmail, subject, body); err != nil {
		d.logger.Warn("status notification failed",
			zap.Error(err), zap.Int64("orderID", order.ID),
			zap.String("from", string(oldStatus)), zap.String("to", string(newStatus)))
		return false
	}

	return true
}
