package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/shop-fulfillment/internal/domain/alert"
	"github.com/example/shop-fulfillment/internal/domain/order"
	"github.com/example/shop-fulfillment/internal/domain/stock"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/model"
	"github.com/example/shop-fulfillment/internal/notification"
)

type Handlers struct {
	orderSvc    *order.Service
	ledger      *stock.Service
	alertSvc    *alert.Service
	docStore    store.DocStore
	projections []string
}

func NewHandlers(orderSvc *order.Service, ledger *stock.Service, alertSvc *alert.Service, docStore store.DocStore, projections []string) *Handlers {
	return &Handlers{
		orderSvc:    orderSvc,
		ledger:      ledger,
		alertSvc:    alertSvc,
		docStore:    docStore,
		projections: projections,
	}
}

// Checkout handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd order.CreateOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.orderSvc.Create(r.Context(), cmd)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	o, err := h.orderSvc.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer")
	if customerID == "" {
		http.Error(w, "customer query parameter is required", http.StatusBadRequest)
		return
	}
	orders, err := h.orderSvc.ListByCustomer(r.Context(), customerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Catalog read path: the storefront projection is read directly, writes
// always go through the ledger.

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.docStore.GetAll(r.Context(), h.projections[0])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// Operator order handlers

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.ListAll(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

type transitionRequest struct {
	Status         int      `json:"status"`
	TrackingNumber string   `json:"tracking_number,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Channels       []string `json:"channels,omitempty"`
}

func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/admin/orders/"), "/status")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	channels := make([]notification.Channel, 0, len(req.Channels))
	for _, c := range req.Channels {
		channels = append(channels, notification.Channel(c))
	}

	o, results, err := h.orderSvc.Transition(r.Context(), id, model.OrderStatus(req.Status), req.TrackingNumber, req.Notes, channels)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// Notification outcomes ride along as warnings, never as the
	// operation's own failure.
	respondJSON(w, http.StatusOK, map[string]any{
		"order":         o,
		"notifications": results,
	})
}

type correctionRequest struct {
	Status int    `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handlers) CorrectOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/admin/orders/"), "/correct")

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.orderSvc.Correct(r.Context(), id, model.OrderStatus(req.Status), req.Notes)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Operator stock handlers

type setStockRequest struct {
	Stock       int      `json:"stock"`
	Projections []string `json:"projections,omitempty"`
}

func (h *Handlers) SetStock(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/admin/stock/")

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	projections := req.Projections
	if len(projections) == 0 {
		projections = h.projections
	}

	if err := h.ledger.SetAbsolute(r.Context(), productID, req.Stock, projections); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"product_id": productID, "stock": req.Stock})
}

type deltaRequest struct {
	Delta       int      `json:"delta"`
	Projections []string `json:"projections,omitempty"`
}

func (h *Handlers) ApplyStockDelta(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/admin/stock/"), "/delta")

	var req deltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	projections := req.Projections
	if len(projections) == 0 {
		projections = h.projections
	}

	// Administrative edits clamp at zero instead of failing.
	newStock, err := h.ledger.ApplyDelta(r.Context(), productID, req.Delta, projections, stock.Clamp)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"product_id": productID, "stock": newStock})
}

func (h *Handlers) DeleteStock(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/admin/stock/")

	projections := h.projections
	if raw := r.URL.Query().Get("projections"); raw != "" {
		projections = strings.Split(raw, ",")
	}

	if err := h.ledger.Delete(r.Context(), productID, projections); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product removed from listed projections"})
}

// Operator alert handlers

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alertSvc.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

func (h *Handlers) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/admin/alerts/"), "/read")

	if err := h.alertSvc.MarkRead(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "alert marked read"})
}

// UnreadAlertCount feeds the operator notification bell, polled on a fixed
// interval.
func (h *Handlers) UnreadAlertCount(w http.ResponseWriter, r *http.Request) {
	var types []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		types = strings.Split(raw, ",")
	}

	count, err := h.alertSvc.CountUnread(r.Context(), types...)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.ListAll(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	unread, err := h.alertSvc.CountUnread(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"orders":        len(orders),
		"unread_alerts": unread,
	})
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondDomainError maps domain errors onto HTTP statuses and messages.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stock.ErrInsufficientStock):
		respondJSON(w, http.StatusConflict, map[string]string{"error": "cannot fulfill requested quantity"})
	case errors.Is(err, order.ErrInvalidOrder), errors.Is(err, stock.ErrNoProjections), errors.Is(err, stock.ErrNegativeStock):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, stock.ErrProductNotFound), errors.Is(err, alert.ErrAlertNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, order.ErrTransitionNotAllowed):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
