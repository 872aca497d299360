package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/service"
)

type createOrderResponse struct {
	Order           *model.Order    `json:"order"`
	UpdatedCustomer *model.Customer `json:"updatedCustomer"`
}

// CreateOrder создаёт заказ и применяет списание и начисление бонусов.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderInput
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	order, customer, err := h.svc.Orders.Create(r.Context(), tenant(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{Order: order, UpdatedCustomer: customer})
}

// firstParam возвращает первое непустое значение из перечисленных параметров запроса.
func firstParam(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// ListOrders возвращает страницу заказов с фильтрами.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.OrderQuery{
		Status:    model.OrderStatus(q.Get("status")),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}

	var err error
	if query.CustomerID, err = parseOptionalUUID(firstParam(q, "customer_id", "customerId")); err != nil {
		h.badRequest(w, "invalid customer_id")
		return
	}
	if query.EmployeeID, err = parseOptionalUUID(firstParam(q, "employee_id", "employeeId")); err != nil {
		h.badRequest(w, "invalid employee_id")
		return
	}
	if query.MinPrice, err = parseOptionalDecimal(q.Get("minPrice")); err != nil {
		h.badRequest(w, "invalid minPrice")
		return
	}
	if query.MaxPrice, err = parseOptionalDecimal(q.Get("maxPrice")); err != nil {
		h.badRequest(w, "invalid maxPrice")
		return
	}

	orders, page, err := h.svc.Orders.List(r.Context(), tenant(r), query, parsePage(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "pagination": page})
}

type orderIDRequest struct {
	OrderID uuid.UUID `json:"orderId"`
}

func (h *Handler) readOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req orderIDRequest
	if err := readJSON(r, &req); err != nil || req.OrderID == uuid.Nil {
		h.badRequest(w, "orderId is required")
		return uuid.Nil, false
	}
	return req.OrderID, true
}

// DeleteOrder удаляет заказ и откатывает его бонусный эффект.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.readOrderID(w, r)
	if !ok {
		return
	}

	customer, err := h.svc.Orders.Delete(r.Context(), tenant(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "order deleted", "updatedCustomer": customer})
}

type orderTransition func(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error)

// transition возвращает обработчик смены статуса заказа: отмена, возврат или подтверждение.
func (h *Handler) transition(fn orderTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.readOrderID(w, r)
		if !ok {
			return
		}

		order, err := fn(r.Context(), tenant(r), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
	}
}
