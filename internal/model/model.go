// Package model содержит доменные сущности маркетплейса фермерских продуктов.
package model

import "time"

// User представляет зарегистрированного покупателя.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Email        string
	CreatedAt    time.Time
}

// Product описывает товар фермера в каталоге.
// Цена хранится в копейках, на границе API конвертируется в рубли.
type Product struct {
	ID          int64
	Name        string
	Description string
	PriceCents  int64
	FarmerName  string
	Unit        string
	IsActive    bool
	CreatedAt   time.Time
}

// InventoryRecord содержит складские счётчики по одному товару.
// Инвариант: CurrentStock - ReservedStock - DamagedStock >= 0.
type InventoryRecord struct {
	ID            int64
	ProductID     int64
	CurrentStock  int64
	ReservedStock int64
	DamagedStock  int64
	MinimumStock  int64
	ReorderPoint  int64
	MaximumStock  int64
	ExpiryDate    *time.Time
	BatchNumber   string
	LastRestocked *time.Time
	LastSold      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AvailableStock возвращает количество, доступное к продаже.
func (r InventoryRecord) AvailableStock() int64 {
	available := r.CurrentStock - r.ReservedStock - r.DamagedStock
	if available < 0 {
		return 0
	}
	return available
}

// MovementType описывает тип движения остатков.
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementDamage     MovementType = "damage"
	MovementReturn     MovementType = "return"
	MovementTransfer   MovementType = "transfer"
	MovementExpired    MovementType = "expired"
)

// StockMovement описывает неизменяемую запись журнала движений остатков.
type StockMovement struct {
	ID            int64
	InventoryID   int64
	MovementType  MovementType
	Quantity      int64
	ReferenceType string
	ReferenceID   *int64
	Notes         string
	StockAfter    int64
	CreatedAt     time.Time
}

// Order описывает заказ покупателя.
type Order struct {
	ID              int64
	CustomerID      int64
	TotalCents      int64
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	DeliveryAddress string
	CustomerPhone   string
	CustomerEmail   string
	Notes           string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem описывает позицию заказа. Название и цена фиксируются
// на момент оформления и не меняются при изменении каталога.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int64
	PriceCents  int64
}

// TotalCents возвращает стоимость позиции в копейках.
func (i OrderItem) TotalCents() int64 {
	return i.Quantity * i.PriceCents
}

// OrderStatusHistory описывает запись истории смены статуса заказа.
type OrderStatusHistory struct {
	ID        int64
	OrderID   int64
	Status    OrderStatus
	Notes     string
	ChangedAt time.Time
}

// AlertType описывает тип складского оповещения.
type AlertType string

const (
	AlertLowStock     AlertType = "low_stock"
	AlertOutOfStock   AlertType = "out_of_stock"
	AlertOverstock    AlertType = "overstock"
	AlertExpiringSoon AlertType = "expiring_soon"
	AlertReorderDue   AlertType = "reorder_due"
)

// AlertPriority описывает приоритет складского оповещения.
type AlertPriority string

const (
	PriorityLow    AlertPriority = "low"
	PriorityMedium AlertPriority = "medium"
	PriorityHigh   AlertPriority = "high"
	PriorityUrgent AlertPriority = "urgent"
)

// StockAlert описывает оповещение о пересечении порога остатков.
type StockAlert struct {
	ID             int64
	InventoryID    int64
	AlertType      AlertType
	Priority       AlertPriority
	Message        string
	IsActive       bool
	IsResolved     bool
	AcknowledgedBy string
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}

// Delivery описывает физическую доставку заказа.
type Delivery struct {
	ID                int64
	OrderID           int64
	TrackingNumber    string
	Status            DeliveryStatus
	RecipientName     string
	RecipientPhone    string
	DeliveryAddress   string
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DeliveryStatusUpdate описывает запись истории смены статуса доставки.
type DeliveryStatusUpdate struct {
	ID         int64
	DeliveryID int64
	OldStatus  DeliveryStatus
	NewStatus  DeliveryStatus
	UpdatedBy  string
	Notes      string
	CreatedAt  time.Time
}
