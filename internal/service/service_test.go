package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/farmarket-system/internal/model"
	"github.com/mmeshcher/farmarket-system/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	createOrderResp *model.Order
	createOrderErr  error
	createOrderGot  *repository.OrderDraft

	getOrderResp *model.Order
	getOrderErr  error

	statusChangeResp *repository.StatusChange
	statusChangeErr  error
	statusChangeGot  model.OrderStatus

	paymentResp *model.Order
	paymentErr  error

	inventoryResp *model.InventoryRecord
	inventoryErr  error

	listInventoriesResp []model.InventoryRecord

	createdAlerts []model.StockAlert

	deliveryResp      *model.Delivery
	deliveryOrderResp *model.Order
	deliveryErr       error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte, email string) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) CreateProduct(ctx context.Context, p model.Product, initialStock, minimumStock, reorderPoint, maximumStock int64) (int64, error) {
	return 1, nil
}

func (s *stubRepo) ListProducts(ctx context.Context) ([]model.Product, error) { return nil, nil }

func (s *stubRepo) CreateOrder(ctx context.Context, draft repository.OrderDraft) (*model.Order, error) {
	s.createOrderGot = &draft
	return s.createOrderResp, s.createOrderErr
}

func (s *stubRepo) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.getOrderResp, s.getOrderErr
}

func (s *stubRepo) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	return nil, nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, notes string) (*repository.StatusChange, error) {
	s.statusChangeGot = newStatus
	return s.statusChangeResp, s.statusChangeErr
}

func (s *stubRepo) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error) {
	return s.paymentResp, s.paymentErr
}

func (s *stubRepo) Reserve(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubRepo) Release(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubRepo) Consume(ctx context.Context, productID, quantity int64, refID *int64) (*model.InventoryRecord, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubRepo) Restock(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubRepo) ReportDamage(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubRepo) Adjust(ctx context.Context, productID, delta int64, notes string) (*model.InventoryRecord, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubRepo) GetInventoryByProduct(ctx context.Context, productID int64) (*model.InventoryRecord, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubRepo) ListInventories(ctx context.Context) ([]model.InventoryRecord, error) {
	return s.listInventoriesResp, nil
}

func (s *stubRepo) GetMovements(ctx context.Context, productID int64, limit int) ([]model.StockMovement, error) {
	return nil, nil
}

func (s *stubRepo) CreateAlertIfAbsent(ctx context.Context, alert model.StockAlert) (bool, error) {
	s.createdAlerts = append(s.createdAlerts, alert)
	return true, nil
}

func (s *stubRepo) ListActiveAlerts(ctx context.Context) ([]model.StockAlert, error) { return nil, nil }

func (s *stubRepo) AcknowledgeAlert(ctx context.Context, alertID int64, acknowledgedBy string) error {
	return nil
}

func (s *stubRepo) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) error {
	return nil
}

func (s *stubRepo) GetDeliveryByTracking(ctx context.Context, trackingNumber string) (*model.Delivery, error) {
	return s.deliveryResp, s.deliveryErr
}

func (s *stubRepo) GetDeliveryStatusUpdates(ctx context.Context, deliveryID int64) ([]model.DeliveryStatusUpdate, error) {
	return nil, nil
}

func (s *stubRepo) UpdateDeliveryStatus(ctx context.Context, deliveryID int64, newStatus model.DeliveryStatus, updatedBy, notes string) (*model.Delivery, *model.Order, error) {
	return s.deliveryResp, s.deliveryOrderResp, s.deliveryErr
}

type stubDispatcher struct {
	placed        int
	statusChanged int
	lastOld       model.OrderStatus
	lastNew       model.OrderStatus
	ok            bool
}

func (d *stubDispatcher) OrderPlaced(ctx context.Context, order *model.Order) bool {
	d.placed++
	return d.ok
}

func (d *stubDispatcher) OrderStatusChanged(ctx context.Context, order *model.Order, oldStatus, newStatus model.OrderStatus) bool {
	d.statusChanged++
	d.lastOld = oldStatus
	d.lastNew = newStatus
	return d.ok
}

func newTestService(repo *stubRepo, d *stubDispatcher) *Service {
	return NewService(repo, d, zap.NewNop())
}

func validDraft() repository.OrderDraft {
	return repository.OrderDraft{
		CustomerID:      1,
		DeliveryAddress: "Prostokvashino, Pochtovaya st. 1",
		CustomerEmail:   "customer@example.com",
		Items: []repository.OrderDraftItem{
			{ProductID: 3, Quantity: 4},
		},
	}
}

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user", "pass")
	b := hashPassword("user", "pass")
	c := hashPassword("user", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed := hashPassword("user", "correct")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Login:        "user",
			PasswordHash: hashed,
		},
	}
	svc := newTestService(repo, &stubDispatcher{ok: true})

	_, err := svc.AuthenticateUser(context.Background(), "user", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*repository.OrderDraft)
	}{
		{"empty cart", func(d *repository.OrderDraft) { d.Items = nil }},
		{"blank address", func(d *repository.OrderDraft) { d.DeliveryAddress = "  " }},
		{"bad email", func(d *repository.OrderDraft) { d.CustomerEmail = "not-an-email" }},
		{"bad phone", func(d *repository.OrderDraft) { d.CustomerPhone = "call me" }},
		{"zero quantity", func(d *repository.OrderDraft) { d.Items[0].Quantity = 0 }},
		{"negative quantity", func(d *repository.OrderDraft) { d.Items[0].Quantity = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			svc := newTestService(repo, &stubDispatcher{ok: true})

			draft := validDraft()
			tt.mutate(&draft)

			_, err := svc.PlaceOrder(context.Background(), draft)
			if !errors.Is(err, ErrInvalidOrder) {
				t.Fatalf("expected ErrInvalidOrder, got %v", err)
			}
			if repo.createOrderGot != nil {
				t.Fatal("repository must not be called for an invalid draft")
			}
		})
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	order := &model.Order{
		ID:            10,
		CustomerID:    1,
		Status:        model.OrderStatusPending,
		CustomerEmail: "customer@example.com",
		Items:         []model.OrderItem{{ProductID: 3, Quantity: 4, PriceCents: 100}},
	}
	repo := &stubRepo{
		createOrderResp: order,
		inventoryResp:   &model.InventoryRecord{ID: 7, ProductID: 3, CurrentStock: 100, MinimumStock: 10, ReorderPoint: 20},
	}
	d := &stubDispatcher{ok: true}
	svc := newTestService(repo, d)

	got, err := svc.PlaceOrder(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if got.ID != 10 {
		t.Fatalf("order ID = %d, want 10", got.ID)
	}
	if d.placed != 1 {
		t.Fatalf("dispatcher called %d times, want 1", d.placed)
	}
}

func TestPlaceOrder_NotificationFailureDoesNotFailOrder(t *testing.T) {
	repo := &stubRepo{
		createOrderResp: &model.Order{ID: 10, Items: []model.OrderItem{{ProductID: 3, Quantity: 1}}},
		inventoryResp:   &model.InventoryRecord{ID: 7, ProductID: 3, CurrentStock: 100, MinimumStock: 10, ReorderPoint: 20},
	}
	svc := newTestService(repo, &stubDispatcher{ok: false})

	if _, err := svc.PlaceOrder(context.Background(), validDraft()); err != nil {
		t.Fatalf("PlaceOrder must succeed despite notification failure, got %v", err)
	}
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	repo := &stubRepo{createOrderErr: repository.ErrInsufficientStock}
	d := &stubDispatcher{ok: true}
	svc := newTestService(repo, d)

	_, err := svc.PlaceOrder(context.Background(), validDraft())
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if d.placed != 0 {
		t.Fatal("dispatcher must not be called for a failed order")
	}
}

func TestUpdateOrderStatus_UnknownStatus(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &stubDispatcher{ok: true})

	_, err := svc.UpdateOrderStatus(context.Background(), 1, model.OrderStatus("packed"), "")
	if !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.statusChangeGot != "" {
		t.Fatal("repository must not be called for an unknown status")
	}
}

func TestUpdateOrderStatus_DispatchesAndRechecksAlerts(t *testing.T) {
	lowStock := model.InventoryRecord{ID: 7, ProductID: 3, CurrentStock: 5, MinimumStock: 10, ReorderPoint: 20}
	repo := &stubRepo{
		statusChangeResp: &repository.StatusChange{
			Order:     &model.Order{ID: 10, Status: model.OrderStatusConfirmed},
			OldStatus: model.OrderStatusPending,
			Touched:   []model.InventoryRecord{lowStock},
		},
	}
	d := &stubDispatcher{ok: true}
	svc := newTestService(repo, d)

	order, err := svc.UpdateOrderStatus(context.Background(), 10, model.OrderStatusConfirmed, "confirmed by admin")
	if err != nil {
		t.Fatalf("UpdateOrderStatus error: %v", err)
	}
	if order.Status != model.OrderStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", order.Status)
	}
	if d.statusChanged != 1 || d.lastOld != model.OrderStatusPending || d.lastNew != model.OrderStatusConfirmed {
		t.Fatalf("dispatcher got %d calls (%s -> %s), want 1 (pending -> confirmed)", d.statusChanged, d.lastOld, d.lastNew)
	}
	if len(repo.createdAlerts) != 1 || repo.createdAlerts[0].AlertType != model.AlertLowStock {
		t.Fatalf("expected one low_stock alert, got %+v", repo.createdAlerts)
	}
}

func TestUpdateOrderStatus_InvalidTransitionPropagated(t *testing.T) {
	repo := &stubRepo{statusChangeErr: repository.ErrInvalidTransition}
	d := &stubDispatcher{ok: true}
	svc := newTestService(repo, d)

	_, err := svc.UpdateOrderStatus(context.Background(), 10, model.OrderStatusShipped, "")
	if !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if d.statusChanged != 0 {
		t.Fatal("dispatcher must not be called for a rejected transition")
	}
}

func TestUpdatePaymentStatus_UnknownStatus(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubDispatcher{ok: true})

	_, err := svc.UpdatePaymentStatus(context.Background(), 1, model.PaymentStatus("maybe"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetCustomerOrder_HidesForeignOrders(t *testing.T) {
	repo := &stubRepo{
		getOrderResp: &model.Order{ID: 10, CustomerID: 2},
	}
	svc := newTestService(repo, &stubDispatcher{ok: true})

	_, err := svc.GetCustomerOrder(context.Background(), 1, 10)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}
}

func TestInventoryOperations_RejectBadQuantities(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubDispatcher{ok: true})
	ctx := context.Background()

	if _, err := svc.Restock(ctx, 1, 0, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Restock(0) = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ReserveStock(ctx, 1, -2); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ReserveStock(-2) = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ConsumeStock(ctx, 1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ConsumeStock(0) = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.AdjustStock(ctx, 1, 0, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("AdjustStock(0) = %v, want ErrInvalidInput", err)
	}
}

func TestRestock_RechecksAlerts(t *testing.T) {
	repo := &stubRepo{
		inventoryResp: &model.InventoryRecord{ID: 7, ProductID: 3, CurrentStock: 2000, MinimumStock: 10, ReorderPoint: 20, MaximumStock: 1000},
	}
	svc := newTestService(repo, &stubDispatcher{ok: true})

	if _, err := svc.Restock(context.Background(), 3, 1000, "season harvest"); err != nil {
		t.Fatalf("Restock error: %v", err)
	}
	if len(repo.createdAlerts) != 1 || repo.createdAlerts[0].AlertType != model.AlertOverstock {
		t.Fatalf("expected one overstock alert, got %+v", repo.createdAlerts)
	}
}

func TestUpdateDeliveryStatus_CompletionNotifiesCustomer(t *testing.T) {
	repo := &stubRepo{
		deliveryResp:      &model.Delivery{ID: 4, OrderID: 10, Status: model.DeliveryStatusDelivered},
		deliveryOrderResp: &model.Order{ID: 10, Status: model.OrderStatusDelivered},
	}
	d := &stubDispatcher{ok: true}
	svc := newTestService(repo, d)

	if _, err := svc.UpdateDeliveryStatus(context.Background(), 4, model.DeliveryStatusDelivered, "driver", ""); err != nil {
		t.Fatalf("UpdateDeliveryStatus error: %v", err)
	}
	if d.statusChanged != 1 || d.lastNew != model.OrderStatusDelivered {
		t.Fatalf("dispatcher got %d calls (-> %s), want 1 (-> delivered)", d.statusChanged, d.lastNew)
	}
}

func TestUpdateDeliveryStatus_NoOrderChangeNoNotification(t *testing.T) {
	repo := &stubRepo{
		deliveryResp: &model.Delivery{ID: 4, OrderID: 10, Status: model.DeliveryStatusInTransit},
	}
	d := &stubDispatcher{ok: true}
	svc := newTestService(repo, d)

	if _, err := svc.UpdateDeliveryStatus(context.Background(), 4, model.DeliveryStatusInTransit, "driver", ""); err != nil {
		t.Fatalf("UpdateDeliveryStatus error: %v", err)
	}
	if d.statusChanged != 0 {
		t.Fatal("dispatcher must not be called when the order is untouched")
	}
}

func TestSweepAlerts_DeduplicationIsRepositoryConcern(t *testing.T) {
	repo := &stubRepo{
		listInventoriesResp: []model.InventoryRecord{
			{ID: 1, ProductID: 1, CurrentStock: 0, MinimumStock: 10, ReorderPoint: 20},
			{ID: 2, ProductID: 2, CurrentStock: 500, MinimumStock: 10, ReorderPoint: 20, MaximumStock: 1000},
		},
	}
	svc := newTestService(repo, &stubDispatcher{ok: true})

	svc.sweepAlerts(context.Background())

	if len(repo.createdAlerts) != 1 || repo.createdAlerts[0].AlertType != model.AlertOutOfStock {
		t.Fatalf("expected one out_of_stock alert, got %+v", repo.createdAlerts)
	}
}
