package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/farmarket-system/internal/middleware"
	"github.com/mmeshcher/farmarket-system/internal/model"
)

type inventoryResponse struct {
	ProductID      int64  `json:"product_id"`
	CurrentStock   int64  `json:"current_stock"`
	ReservedStock  int64  `json:"reserved_stock"`
	DamagedStock   int64  `json:"damaged_stock"`
	AvailableStock int64  `json:"available_stock"`
	MinimumStock   int64  `json:"minimum_stock"`
	ReorderPoint   int64  `json:"reorder_point"`
	MaximumStock   int64  `json:"maximum_stock"`
	LastRestocked  string `json:"last_restocked,omitempty"`
	LastSold       string `json:"last_sold,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
}

func toInventoryResponse(rec *model.InventoryRecord) inventoryResponse {
	resp := inventoryResponse{
		ProductID:      rec.ProductID,
		CurrentStock:   rec.CurrentStock,
		ReservedStock:  rec.ReservedStock,
		DamagedStock:   rec.DamagedStock,
		AvailableStock: rec.AvailableStock(),
		MinimumStock:   rec.MinimumStock,
		ReorderPoint:   rec.ReorderPoint,
		MaximumStock:   rec.MaximumStock,
	}
	if rec.LastRestocked != nil {
		resp.LastRestocked = rec.LastRestocked.Format(time.RFC3339)
	}
	if rec.LastSold != nil {
		resp.LastSold = rec.LastSold.Format(time.RFC3339)
	}
	if rec.ExpiryDate != nil {
		resp.ExpiryDate = rec.ExpiryDate.Format(time.RFC3339)
	}
	return resp
}

type movementResponse struct {
	Type       string `json:"type"`
	Quantity   int64  `json:"quantity"`
	StockAfter int64  `json:"stock_after"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type stockRequest struct {
	Quantity int64  `json:"quantity"`
	Notes    string `json:"notes"`
}

// GetInventory возвращает складскую запись товара и последние движения.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(r, "productID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rec, movements, err := h.service.GetInventory(r.Context(), productID)
	if err != nil {
		h.writeError(w, err, "get inventory")
		return
	}

	moves := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		moves = append(moves, movementResponse{
			Type:       string(m.MovementType),
			Quantity:   m.Quantity,
			StockAfter: m.StockAfter,
			Notes:      m.Notes,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, struct {
		inventoryResponse
		Movements []movementResponse `json:"movements"`
	}{toInventoryResponse(rec), moves})
}

// stockHandler оборачивает однотипные складские операции.
func (h *Handler) stockHandler(op string, mutate func(r *http.Request, productID int64, req stockRequest) (*model.InventoryRecord, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, ok := pathID(r, "productID")
		if !ok {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		var req stockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		rec, err := mutate(r, productID, req)
		if err != nil {
			h.writeError(w, err, op)
			return
		}

		writeJSON(w, http.StatusOK, toInventoryResponse(rec))
	}
}

// Restock пополняет склад товара.
func (h *Handler) Restock() http.HandlerFunc {
	return h.stockHandler("restock", func(r *http.Request, productID int64, req stockRequest) (*model.InventoryRecord, error) {
		return h.service.Restock(r.Context(), productID, req.Quantity, req.Notes)
	})
}

// ReportDamage списывает повреждённый товар.
func (h *Handler) ReportDamage() http.HandlerFunc {
	return h.stockHandler("report damage", func(r *http.Request, productID int64, req stockRequest) (*model.InventoryRecord, error) {
		return h.service.ReportDamage(r.Context(), productID, req.Quantity, req.Notes)
	})
}

// AdjustStock выполняет ручную корректировку остатка.
func (h *Handler) AdjustStock() http.HandlerFunc {
	return h.stockHandler("adjust stock", func(r *http.Request, productID int64, req stockRequest) (*model.InventoryRecord, error) {
		return h.service.AdjustStock(r.Context(), productID, req.Quantity, req.Notes)
	})
}

// ReserveStock ставит ручной резерв на товар.
func (h *Handler) ReserveStock() http.HandlerFunc {
	return h.stockHandler("reserve stock", func(r *http.Request, productID int64, req stockRequest) (*model.InventoryRecord, error) {
		return h.service.ReserveStock(r.Context(), productID, req.Quantity)
	})
}

// ReleaseStock снимает ручной резерв с товара.
func (h *Handler) ReleaseStock() http.HandlerFunc {
	return h.stockHandler("release stock", func(r *http.Request, productID int64, req stockRequest) (*model.InventoryRecord, error) {
		return h.service.ReleaseStock(r.Context(), productID, req.Quantity)
	})
}

// ConsumeStock фиксирует продажу зарезервированного товара.
func (h *Handler) ConsumeStock() http.HandlerFunc {
	return h.stockHandler("consume stock", func(r *http.Request, productID int64, req stockRequest) (*model.InventoryRecord, error) {
		return h.service.ConsumeStock(r.Context(), productID, req.Quantity)
	})
}

type alertResponse struct {
	ID             int64  `json:"id"`
	InventoryID    int64  `json:"inventory_id"`
	Type           string `json:"type"`
	Priority       string `json:"priority"`
	Message        string `json:"message"`
	AcknowledgedBy string `json:"acknowledged_by,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// ListAlerts возвращает активные складские оповещения.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ListActiveAlerts(r.Context())
	if err != nil {
		h.writeError(w, err, "list alerts")
		return
	}

	if len(alerts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, alertResponse{
			ID:             a.ID,
			InventoryID:    a.InventoryID,
			Type:           string(a.AlertType),
			Priority:       string(a.Priority),
			Message:        a.Message,
			AcknowledgedBy: a.AcknowledgedBy,
			CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type actorRequest struct {
	By string `json:"by"`
}

// AcknowledgeAlert отмечает оповещение как просмотренное.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alertID, ok := pathID(r, "alertID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AcknowledgeAlert(r.Context(), alertID, req.By); err != nil {
		h.writeError(w, err, "acknowledge alert")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ResolveAlert закрывает оповещение.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID, ok := pathID(r, "alertID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ResolveAlert(r.Context(), alertID, req.By); err != nil {
		h.writeError(w, err, "resolve alert")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type deliveryResponse struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	RecipientName  string `json:"recipient_name"`
	Address        string `json:"address"`
	DeliveredAt    string `json:"delivered_at,omitempty"`
}

type deliveryUpdateResponse struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	UpdatedBy string `json:"updated_by,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toDeliveryResponse(d *model.Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:             d.ID,
		OrderID:        d.OrderID,
		TrackingNumber: d.TrackingNumber,
		Status:         string(d.Status),
		RecipientName:  d.RecipientName,
		Address:        d.DeliveryAddress,
	}
	if d.DeliveredAt != nil {
		resp.DeliveredAt = d.DeliveredAt.Format(time.RFC3339)
	}
	return resp
}

// GetDelivery возвращает доставку по трек-номеру вместе с историей.
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	tracking := chi.URLParam(r, "trackingNumber")
	if tracking == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	delivery, updates, err := h.service.GetDelivery(r.Context(), tracking)
	if err != nil {
		h.writeError(w, err, "get delivery")
		return
	}

	ups := make([]deliveryUpdateResponse, 0, len(updates))
	for _, u := range updates {
		ups = append(ups, deliveryUpdateResponse{
			OldStatus: string(u.OldStatus),
			NewStatus: string(u.NewStatus),
			UpdatedBy: u.UpdatedBy,
			Notes:     u.Notes,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, struct {
		deliveryResponse
		Updates []deliveryUpdateResponse `json:"updates"`
	}{toDeliveryResponse(delivery), ups})
}

type deliveryStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// UpdateDeliveryStatus переводит доставку в новый статус.
func (h *Handler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	deliveryID, ok := pathID(r, "deliveryID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req deliveryStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	updatedBy := ""
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		updatedBy = "user:" + strconv.FormatInt(userID, 10)
	}

	delivery, err := h.service.UpdateDeliveryStatus(r.Context(), deliveryID, model.DeliveryStatus(req.Status), updatedBy, req.Notes)
	if err != nil {
		h.writeError(w, err, "update delivery status")
		return
	}

	writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}
