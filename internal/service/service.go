// Package service реализует бизнес-логику маркетплейса.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/farmarket-system/internal/alerts"
	"github.com/mmeshcher/farmarket-system/internal/model"
	"github.com/mmeshcher/farmarket-system/internal/repository"
	"github.com/mmeshcher/farmarket-system/internal/validation"
)

// ErrInvalidOrder возвращается при некорректной заявке на заказ.
var (
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput возвращается при некорректных входных данных операции.
	ErrInvalidInput = errors.New("invalid input")
)

const alertSweepInterval = time.Minute

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte, email string) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)

	CreateProduct(ctx context.Context, p model.Product, initialStock, minimumStock, reorderPoint, maximumStock int64) (int64, error)
	ListProducts(ctx context.Context) ([]model.Product, error)

	CreateOrder(ctx context.Context, draft repository.OrderDraft) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, notes string) (*repository.StatusChange, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error)

	Reserve(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error)
	Release(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error)
	Consume(ctx context.Context, productID, quantity int64, refID *int64) (*model.InventoryRecord, error)
	Restock(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error)
	ReportDamage(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error)
	Adjust(ctx context.Context, productID, delta int64, notes string) (*model.InventoryRecord, error)
	GetInventoryByProduct(ctx context.Context, productID int64) (*model.InventoryRecord, error)
	ListInventories(ctx context.Context) ([]model.InventoryRecord, error)
	GetMovements(ctx context.Context, productID int64, limit int) ([]model.StockMovement, error)

	CreateAlertIfAbsent(ctx context.Context, alert model.StockAlert) (bool, error)
	ListActiveAlerts(ctx context.Context) ([]model.StockAlert, error)
	AcknowledgeAlert(ctx context.Context, alertID int64, acknowledgedBy string) error
	ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) error

	GetDeliveryByTracking(ctx context.Context, trackingNumber string) (*model.Delivery, error)
	GetDeliveryStatusUpdates(ctx context.Context, deliveryID int64) ([]model.DeliveryStatusUpdate, error)
	UpdateDeliveryStatus(ctx context.Context, deliveryID int64, newStatus model.DeliveryStatus, updatedBy, notes string) (*model.Delivery, *model.Order, error)
}

// Dispatcher описывает контракт диспетчера уведомлений о событиях заказа.
type Dispatcher interface {
	OrderPlaced(ctx context.Context, order *model.Order) bool
	OrderStatusChanged(ctx context.Context, order *model.Order, oldStatus, newStatus model.OrderStatus) bool
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и диспетчером уведомлений.
func NewService(repo Repository, dispatcher Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового покупателя.
func (s *Service) RegisterUser(ctx context.Context, login, password, email string) (int64, error) {
	if email != "" && !validation.IsValidEmail(email) {
		return 0, fmt.Errorf("%w: email", ErrInvalidInput)
	}

	hashed := hashPassword(login, password)
	return s.repo.CreateUser(ctx, login, hashed, email)
}

// AuthenticateUser проверяет логин и пароль покупателя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// ProductInput описывает данные нового товара вместе со складскими порогами.
type ProductInput struct {
	Name         string
	Description  string
	PriceCents   int64
	FarmerName   string
	Unit         string
	InitialStock int64
	MinimumStock int64
	ReorderPoint int64
	MaximumStock int64
}

// CreateProduct создаёт товар каталога вместе со складской записью.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (int64, error) {
	if in.Name == "" || in.PriceCents <= 0 || in.InitialStock < 0 {
		return 0, fmt.Errorf("%w: product requires a name, a positive price and a non-negative stock", ErrInvalidInput)
	}
	if in.MinimumStock < 0 || in.ReorderPoint < in.MinimumStock || (in.MaximumStock > 0 && in.MaximumStock < in.ReorderPoint) {
		return 0, fmt.Errorf("%w: thresholds must satisfy minimum <= reorder point <= maximum", ErrInvalidInput)
	}

	p := model.Product{
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		FarmerName:  in.FarmerName,
		Unit:        in.Unit,
	}
	if p.Unit == "" {
		p.Unit = "kg"
	}

	return s.repo.CreateProduct(ctx, p, in.InitialStock, in.MinimumStock, in.ReorderPoint, in.MaximumStock)
}

// ListProducts возвращает активные товары каталога.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// PlaceOrder оформляет заказ из корзины: проверяет позиции, резервирует
// остатки и создаёт заказ атомарно, после фиксации отправляет уведомления.
// Сбой уведомления не откатывает заказ.
func (s *Service) PlaceOrder(ctx context.Context, draft repository.OrderDraft) (*model.Order, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidOrder)
	}
	if !validation.IsValidAddress(draft.DeliveryAddress) {
		return nil, fmt.Errorf("%w: delivery address is required", ErrInvalidOrder)
	}
	if !validation.IsValidEmail(draft.CustomerEmail) {
		return nil, fmt.Errorf("%w: customer email is invalid", ErrInvalidOrder)
	}
	if draft.CustomerPhone != "" && !validation.IsValidPhone(draft.CustomerPhone) {
		return nil, fmt.Errorf("%w: customer phone is invalid", ErrInvalidOrder)
	}
	for _, item := range draft.Items {
		if !validation.IsValidQuantity(item.Quantity) {
			return nil, fmt.Errorf("%w: product %d quantity must be positive", ErrInvalidOrder, item.ProductID)
		}
	}

	order, err := s.repo.CreateOrder(ctx, draft)
	if err != nil {
		return nil, err
	}

	if sent := s.dispatcher.OrderPlaced(ctx, order); !sent {
		s.logger.Warn("order placed without notification", zap.Int64("orderID", order.ID))
	}

	s.recheckAlertsForOrder(ctx, order)

	return order, nil
}

// UpdateOrderStatus переводит заказ в новый статус, применяет складской
// эффект перехода и отправляет уведомление покупателю.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, notes string) (*model.Order, error) {
	if !model.ValidOrderStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", repository.ErrInvalidTransition, newStatus)
	}

	change, err := s.repo.UpdateOrderStatus(ctx, orderID, newStatus, notes)
	if err != nil {
		return nil, err
	}

	if sent := s.dispatcher.OrderStatusChanged(ctx, change.Order, change.OldStatus, newStatus); !sent {
		s.logger.Warn("status changed without notification",
			zap.Int64("orderID", orderID), zap.String("status", string(newStatus)))
	}

	for i := range change.Touched {
		s.evaluateAndStore(ctx, change.Touched[i])
	}

	return change.Order, nil
}

// UpdatePaymentStatus меняет статус оплаты заказа.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error) {
	if !model.ValidPaymentStatus(status) {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, status)
	}
	return s.repo.UpdatePaymentStatus(ctx, orderID, status)
}

// GetCustomerOrder возвращает заказ, если он принадлежит покупателю.
func (s *Service) GetCustomerOrder(ctx context.Context, customerID, orderID int64) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, fmt.Errorf("%w: order %d", repository.ErrOrderNotFound, orderID)
	}
	return order, nil
}

// GetOrdersByCustomer возвращает заказы покупателя.
func (s *Service) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByCustomer(ctx, customerID)
}

// GetOrderHistory возвращает историю статусов заказа покупателя.
func (s *Service) GetOrderHistory(ctx context.Context, customerID, orderID int64) ([]model.OrderStatusHistory, error) {
	if _, err := s.GetCustomerOrder(ctx, customerID, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetOrderHistory(ctx, orderID)
}

// ReserveStock резервирует остаток товара вручную, без заказа.
func (s *Service) ReserveStock(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return s.withAlertRecheck(ctx, func() (*model.InventoryRecord, error) {
		return s.repo.Reserve(ctx, productID, quantity)
	})
}

// ReleaseStock снимает ручной резерв товара.
func (s *Service) ReleaseStock(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return s.withAlertRecheck(ctx, func() (*model.InventoryRecord, error) {
		return s.repo.Release(ctx, productID, quantity)
	})
}

// ConsumeStock списывает остаток напрямую, минуя заказ (продажа на месте).
func (s *Service) ConsumeStock(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return s.withAlertRecheck(ctx, func() (*model.InventoryRecord, error) {
		return s.repo.Consume(ctx, productID, quantity, nil)
	})
}

// Restock пополняет остаток товара.
func (s *Service) Restock(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return s.withAlertRecheck(ctx, func() (*model.InventoryRecord, error) {
		return s.repo.Restock(ctx, productID, quantity, notes)
	})
}

// ReportDamage фиксирует повреждённый остаток товара.
func (s *Service) ReportDamage(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return s.withAlertRecheck(ctx, func() (*model.InventoryRecord, error) {
		return s.repo.ReportDamage(ctx, productID, quantity, notes)
	})
}

// AdjustStock выполняет ручную корректировку остатка на delta единиц.
func (s *Service) AdjustStock(ctx context.Context, productID, delta int64, notes string) (*model.InventoryRecord, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: adjustment delta must be non-zero", ErrInvalidInput)
	}
	return s.withAlertRecheck(ctx, func() (*model.InventoryRecord, error) {
		return s.repo.Adjust(ctx, productID, delta, notes)
	})
}

// GetInventory возвращает складскую запись товара и последние движения.
func (s *Service) GetInventory(ctx context.Context, productID int64) (*model.InventoryRecord, []model.StockMovement, error) {
	rec, err := s.repo.GetInventoryByProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	movements, err := s.repo.GetMovements(ctx, productID, 20)
	if err != nil {
		return nil, nil, err
	}

	return rec, movements, nil
}

// ListActiveAlerts возвращает активные складские оповещения.
func (s *Service) ListActiveAlerts(ctx context.Context) ([]model.StockAlert, error) {
	return s.repo.ListActiveAlerts(ctx)
}

// AcknowledgeAlert помечает оповещение принятым к сведению.
func (s *Service) AcknowledgeAlert(ctx context.Context, alertID int64, acknowledgedBy string) error {
	return s.repo.AcknowledgeAlert(ctx, alertID, acknowledgedBy)
}

// ResolveAlert помечает оповещение решённым.
func (s *Service) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) error {
	return s.repo.ResolveAlert(ctx, alertID, resolvedBy)
}

// GetDelivery возвращает доставку по трек-номеру вместе с историей статусов.
func (s *Service) GetDelivery(ctx context.Context, trackingNumber string) (*model.Delivery, []model.DeliveryStatusUpdate, error) {
	d, err := s.repo.GetDeliveryByTracking(ctx, trackingNumber)
	if err != nil {
		return nil, nil, err
	}

	updates, err := s.repo.GetDeliveryStatusUpdates(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}

	return d, updates, nil
}

// UpdateDeliveryStatus переводит доставку в новый статус. Вручение завершает
// заказ и уведомляет покупателя.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, deliveryID int64, newStatus model.DeliveryStatus, updatedBy, notes string) (*model.Delivery, error) {
	if !model.ValidDeliveryStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown delivery status %q", repository.ErrInvalidTransition, newStatus)
	}

	d, order, err := s.repo.UpdateDeliveryStatus(ctx, deliveryID, newStatus, updatedBy, notes)
	if err != nil {
		return nil, err
	}

	if order != nil {
		if sent := s.dispatcher.OrderStatusChanged(ctx, order, model.OrderStatusShipped, order.Status); !sent {
			s.logger.Warn("delivery completed without notification", zap.Int64("orderID", order.ID))
		}
	}

	return d, nil
}

// StartAlertSweeps запускает фоновый обход складских записей для пересчёта оповещений.
func (s *Service) StartAlertSweeps(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(alertSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepAlerts(ctx)
			}
		}
	}()
}

func (s *Service) sweepAlerts(ctx context.Context) {
	records, err := s.repo.ListInventories(ctx)
	if err != nil {
		s.logger.Warn("alert sweep failed", zap.Error(err))
		return
	}

	for _, rec := range records {
		s.evaluateAndStore(ctx, rec)
	}
}

// withAlertRecheck выполняет складскую операцию и пересчитывает оповещения
// по её результату.
func (s *Service) withAlertRecheck(ctx context.Context, fn func() (*model.InventoryRecord, error)) (*model.InventoryRecord, error) {
	rec, err := fn()
	if err != nil {
		return nil, err
	}
	s.evaluateAndStore(ctx, *rec)
	return rec, nil
}

func (s *Service) evaluateAndStore(ctx context.Context, rec model.InventoryRecord) {
	for _, alert := range alerts.Evaluate(rec, time.Now()) {
		if _, err := s.repo.CreateAlertIfAbsent(ctx, alert); err != nil {
			s.logger.Warn("store alert failed",
				zap.Error(err), zap.Int64("inventoryID", rec.ID), zap.String("type", string(alert.AlertType)))
		}
	}
}

func (s *Service) recheckAlertsForOrder(ctx context.Context, order *model.Order) {
	for _, item := range order.Items {
		rec, err := s.repo.GetInventoryByProduct(ctx, item.ProductID)
		if err != nil {
			s.logger.Warn("alert recheck failed", zap.Error(err), zap.Int64("productID", item.ProductID))
			continue
		}
		s.evaluateAndStore(ctx, *rec)
	}
}
