package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/farmarket-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса маркетплейса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/", h.PlaceOrder)
			r.Get("/", h.GetOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Get("/{orderID}/history", h.GetOrderHistory)
		})

		r.Post("/{orderID}/status", h.UpdateOrderStatus)
		r.Post("/{orderID}/payment", h.UpdatePaymentStatus)
	})

	r.Route("/api/inventory/{productID}", func(r chi.Router) {
		r.Get("/", h.GetInventory)
		r.Post("/restock", h.Restock())
		r.Post("/damage", h.ReportDamage())
		r.Post("/adjust", h.AdjustStock())
		r.Post("/reserve", h.ReserveStock())
		r.Post("/release", h.ReleaseStock())
		r.Post("/consume", h.ConsumeStock())
	})

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", h.ListAlerts)
		r.Post("/{alertID}/acknowledge", h.AcknowledgeAlert)
		r.Post("/{alertID}/resolve", h.ResolveAlert)
	})

	r.Route("/api/deliveries", func(r chi.Router) {
		r.Get("/track/{trackingNumber}", h.GetDelivery)
		r.Post("/{deliveryID}/status", h.UpdateDeliveryStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
