package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/application"
	"github.com/storefront/order-system/order-service/domain"
)

// OrderHandlers contains order HTTP handlers
type OrderHandlers struct {
	submitOrder *application.SubmitOrder
	getOrder    *application.GetOrder
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(submitOrder *application.SubmitOrder, getOrder *application.GetOrder) *OrderHandlers {
	return &OrderHandlers{
		submitOrder: submitOrder,
		getOrder:    getOrder,
	}
}

type submitOrderResponse struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// SubmitOrder handles order submissions
func (h *OrderHandlers) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.SubmitOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.submitOrder.Execute(r.Context(), &cmd)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidCommand):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrOrderInProgress):
			http.Error(w, "Order already submitted", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if outcome.Rejected() {
		writeJSON(w, http.StatusBadRequest, submitOrderResponse{
			OrderID: outcome.OrderID.String(),
			State:   outcome.State.String(),
			Reason:  outcome.Reason,
		})
		return
	}

	writeJSON(w, http.StatusOK, submitOrderResponse{
		OrderID: outcome.OrderID.String(),
		State:   outcome.State.String(),
		Message: "Order submitted!",
	})
}

// GetOrder handles order retrieval requests
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.getOrder.Execute(r.Context(), &application.GetOrderQuery{OrderID: orderID})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.SubmitOrder)
		r.Get("/{id}", h.GetOrder)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
