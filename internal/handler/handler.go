// Package handler содержит HTTP-обработчики API сервиса маркетплейса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/farmarket-system/internal/middleware"
	"github.com/mmeshcher/farmarket-system/internal/model"
	"github.com/mmeshcher/farmarket-system/internal/repository"
	"github.com/mmeshcher/farmarket-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password, email string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)

	CreateProduct(ctx context.Context, in service.ProductInput) (int64, error)
	ListProducts(ctx context.Context) ([]model.Product, error)

	PlaceOrder(ctx context.Context, draft repository.OrderDraft) (*model.Order, error)
	GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error)
	GetCustomerOrder(ctx context.Context, customerID, orderID int64) (*model.Order, error)
	GetOrderHistory(ctx context.Context, customerID, orderID int64) ([]model.OrderStatusHistory, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, notes string) (*model.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error)

	ReserveStock(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error)
	ReleaseStock(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error)
	ConsumeStock(ctx context.Context, productID, quantity int64) (*model.InventoryRecord, error)
	Restock(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error)
	ReportDamage(ctx context.Context, productID, quantity int64, notes string) (*model.InventoryRecord, error)
	AdjustStock(ctx context.Context, productID, delta int64, notes string) (*model.InventoryRecord, error)
	GetInventory(ctx context.Context, productID int64) (*model.InventoryRecord, []model.StockMovement, error)

	ListActiveAlerts(ctx context.Context) ([]model.StockAlert, error)
	AcknowledgeAlert(ctx context.Context, alertID int64, acknowledgedBy string) error
	ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) error

	GetDelivery(ctx context.Context, trackingNumber string) (*model.Delivery, []model.DeliveryStatusUpdate, error)
	UpdateDeliveryStatus(ctx context.Context, deliveryID int64, newStatus model.DeliveryStatus, updatedBy, notes string) (*model.Delivery, error)
}

// Handler реализует HTTP-обработчики API сервиса маркетплейса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeError переводит доменные ошибки в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvalidOrder), errors.Is(err, service.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrInsufficientStock), errors.Is(err, repository.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrUserExists):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrInventoryNotFound),
		errors.Is(err, repository.ErrAlertNotFound),
		errors.Is(err, repository.ErrDeliveryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Register обрабатывает регистрацию нового покупателя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password, req.Email)
	if err != nil {
		h.writeError(w, err, "register user")
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию покупателя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type createProductRequest struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	FarmerName   string  `json:"farmer_name"`
	Unit         string  `json:"unit"`
	InitialStock int64   `json:"initial_stock"`
	MinimumStock int64   `json:"minimum_stock"`
	ReorderPoint int64   `json:"reorder_point"`
	MaximumStock int64   `json:"maximum_stock"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

// CreateProduct добавляет товар в каталог вместе со складской записью.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateProduct(r.Context(), service.ProductInput{
		Name:         req.Name,
		Description:  req.Description,
		PriceCents:   int64(math.Round(req.Price * 100)),
		FarmerName:   req.FarmerName,
		Unit:         req.Unit,
		InitialStock: req.InitialStock,
		MinimumStock: req.MinimumStock,
		ReorderPoint: req.ReorderPoint,
		MaximumStock: req.MaximumStock,
	})
	if err != nil {
		h.writeError(w, err, "create product")
		return
	}

	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

type productResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	FarmerName  string  `json:"farmer_name,omitempty"`
	Unit        string  `json:"unit"`
}

// ListProducts возвращает активные товары каталога.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err, "list products")
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       float64(p.PriceCents) / 100,
			FarmerName:  p.FarmerName,
			Unit:        p.Unit,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type placeOrderRequest struct {
	DeliveryAddress string `json:"delivery_address"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Notes           string `json:"notes"`
	Items           []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int64 `json:"quantity"`
	} `json:"items"`
}

type orderItemResponse struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	Total           float64             `json:"total"`
	DeliveryAddress string              `json:"delivery_address"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       string              `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       float64(it.PriceCents) / 100,
			Total:       float64(it.TotalCents()) / 100,
		})
	}

	return orderResponse{
		ID:              o.ID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Total:           float64(o.TotalCents) / 100,
		DeliveryAddress: o.DeliveryAddress,
		Items:           items,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
}

// PlaceOrder оформляет заказ из корзины текущего покупателя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	draft := repository.OrderDraft{
		CustomerID:      userID,
		DeliveryAddress: req.DeliveryAddress,
		CustomerPhone:   req.Phone,
		CustomerEmail:   req.Email,
		Notes:           req.Notes,
	}
	for _, it := range req.Items {
		draft.Items = append(draft.Items, repository.OrderDraftItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	order, err := h.service.PlaceOrder(r.Context(), draft)
	if err != nil {
		h.writeError(w, err, "place order")
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrders возвращает список заказов текущего покупателя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByCustomer(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get orders")
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ текущего покупателя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := pathID(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.GetCustomerOrder(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err, "get order")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type historyResponse struct {
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	ChangedAt string `json:"changed_at"`
}

// GetOrderHistory возвращает историю статусов заказа текущего покупателя.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := pathID(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	history, err := h.service.GetOrderHistory(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err, "get order history")
		return
	}

	resp := make([]historyResponse, 0, len(history))
	for _, rec := range history {
		resp = append(resp, historyResponse{
			Status:    string(rec.Status),
			Notes:     rec.Notes,
			ChangedAt: rec.ChangedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// UpdateOrderStatus переводит заказ в новый статус.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), orderID, model.OrderStatus(req.Status), req.Notes)
	if err != nil {
		h.writeError(w, err, "update order status")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// UpdatePaymentStatus меняет статус оплаты заказа.
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentStatus == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdatePaymentStatus(r.Context(), orderID, model.PaymentStatus(req.PaymentStatus))
	if err != nil {
		h.writeError(w, err, "update payment status")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
