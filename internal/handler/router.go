package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/pos-ledger/internal/middleware"
	"github.com/mmeshcher/pos-ledger/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			// Маршруты без выбранной организации.
			r.Post("/organizations", h.CreateOrganization)
			r.Get("/organizations/my", h.MyOrganizations)
			r.Post("/organizations/switch", h.SwitchOrganization)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/organizations", h.ListOrganizations)
				r.Get("/organizations/{id}/stats", h.OrganizationStatistics)
				r.Put("/organizations/{id}/activate", h.setStatus(model.OrganizationActive))
				r.Put("/organizations/{id}/deactivate", h.setStatus(model.OrganizationInactive))
				r.Put("/organizations/{id}/suspend", h.setStatus(model.OrganizationSuspended))
				r.Delete("/organizations/{id}", h.DeleteOrganization)
				r.Get("/stats/system", h.SystemStats)
				r.Get("/stats/organizations-revenue", h.OrganizationsRevenue)
				r.Post("/users/super-admin", h.CreateSuperAdmin)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.Tenant(h.svc.Auth, h.fail))

				r.Get("/organizations/current", h.CurrentOrganization)
				r.Get("/organizations/employees", h.Employees)
				r.Put("/organizations/settings", h.UpdateSettings)
				r.Post("/organizations/add-user", h.AddMember)
				r.Post("/organizations/remove-user", h.RemoveMember)

				r.Post("/customer", h.CreateCustomer)
				r.Get("/customer-list", h.ListCustomers)
				r.Get("/customer/by-phone", h.CustomerByPhone)
				r.Post("/updateCustomer", h.UpdateCustomer)
				r.Get("/customers/{customerId}/orders", h.CustomerOrders)

				r.Post("/order", h.CreateOrder)
				r.Get("/getOrders", h.ListOrders)
				r.Post("/deleteOrder", h.DeleteOrder)
				r.Post("/cancelOrder", h.transition(h.svc.Orders.Cancel))
				r.Post("/refundOrder", h.transition(h.svc.Orders.Refund))
				r.Post("/confirmOrder", h.transition(h.svc.Orders.Confirm))

				r.Get("/income/chart/monthly", h.MonthlyIncome)
				r.Get("/income/chart/last-7-days", h.LastSevenDaysIncome)
				r.Get("/income/chart/range", h.RangeIncome)
				r.Get("/income/export", h.ExportIncome)
				r.Get("/statistics", h.Statistics)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "route not found"})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: http.StatusText(http.StatusMethodNotAllowed)})
	})

	return r
}
