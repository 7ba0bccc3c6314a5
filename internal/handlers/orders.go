package handlers

import (
	"net/http"

	"github.com/alextreichler/qrmenu/internal/orders"
)

type OrderHandler struct {
	Orders *orders.Service
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	order, err := h.Orders.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Mine lists the orders placed with the signed-in user's email.
func (h *OrderHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	list, err := h.Orders.ListByEmail(r.Context(), user.Email)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	order, err := h.Orders.UpdateStatus(r.Context(), r.PathValue("id"), body.Status)
	if err != nil {
		writeServiceError(w, r, err, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Orders.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
