package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/repository"
	"github.com/mmeshcher/pos-ledger/internal/service"
)

type customerRequest struct {
	Phone string `json:"phone"`
	service.CustomerFields
}

type customerResponse struct {
	Customer *model.Customer `json:"customer"`
}

// CreateCustomer регистрирует клиента в текущей организации.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	c, err := h.svc.Customers.Register(r.Context(), tenant(r), req.Phone, req.CustomerFields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customerResponse{Customer: c})
}

// ListCustomers возвращает страницу клиентов с фильтром по телефону и имени.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.CustomerFilter{Phone: q.Get("phone"), Name: q.Get("name")}

	customers, page, err := h.svc.Customers.List(r.Context(), tenant(r), f, parsePage(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if customers == nil {
		customers = []model.Customer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers, "pagination": page})
}

// CustomerByPhone ищет клиента по телефону.
func (h *Handler) CustomerByPhone(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		h.badRequest(w, "phone is required")
		return
	}

	c, err := h.svc.Customers.FindByPhone(r.Context(), tenant(r), phone)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customerResponse{Customer: c})
}

type updateCustomerRequest struct {
	CustomerID uuid.UUID `json:"customerId"`
	service.CustomerPatch
}

// UpdateCustomer изменяет данные клиента. Баланс бонусов этим запросом не меняется.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req updateCustomerRequest
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.CustomerID == uuid.Nil {
		h.badRequest(w, "customerId is required")
		return
	}

	c, err := h.svc.Customers.Update(r.Context(), tenant(r), req.CustomerID, req.CustomerPatch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customerResponse{Customer: c})
}

// CustomerOrders возвращает клиента и историю его оплаченных заказов.
func (h *Handler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "customerId"))
	if err != nil {
		h.badRequest(w, "invalid customer id")
		return
	}

	c, orders, err := h.svc.Customers.Orders(r.Context(), tenant(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": c, "orders": orders})
}
