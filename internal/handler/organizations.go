package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/repository"
	"github.com/mmeshcher/pos-ledger/internal/service"
)

type organizationResponse struct {
	Organization *model.Organization `json:"organization"`
}

// CreateOrganization создаёт организацию, владельцем которой становится текущий пользователь.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req service.OrganizationInput
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	org, err := h.svc.Tenants.Create(r.Context(), identity(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, organizationResponse{Organization: org})
}

// MyOrganizations возвращает организации, в которых состоит пользователь.
func (h *Handler) MyOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.svc.Tenants.Mine(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []service.UserOrganization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

type switchRequest struct {
	OrganizationID uuid.UUID `json:"organizationId"`
}

// SwitchOrganization делает организацию организацией пользователя по умолчанию.
func (h *Handler) SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := readJSON(r, &req); err != nil || req.OrganizationID == uuid.Nil {
		h.badRequest(w, "organizationId is required")
		return
	}

	if err := h.svc.Tenants.Switch(r.Context(), identity(r).UserID, req.OrganizationID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizationId": req.OrganizationID})
}

// CurrentOrganization возвращает организацию текущего запроса.
func (h *Handler) CurrentOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.svc.Tenants.Current(r.Context(), tenant(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, organizationResponse{Organization: org})
}

// Employees возвращает участников текущей организации.
func (h *Handler) Employees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.svc.Tenants.Employees(r.Context(), tenant(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if employees == nil {
		employees = []model.Employee{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
}

// UpdateSettings изменяет настройки текущей организации.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.SettingsPatch
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	org, err := h.svc.Tenants.UpdateSettings(r.Context(), tenant(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, organizationResponse{Organization: org})
}

type memberRequest struct {
	UserID uuid.UUID  `json:"userId"`
	Role   model.Role `json:"role"`
}

// AddMember добавляет пользователя в текущую организацию.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := readJSON(r, &req); err != nil || req.UserID == uuid.Nil {
		h.badRequest(w, "userId is required")
		return
	}

	m, err := h.svc.Tenants.AddMember(r.Context(), tenant(r), req.UserID, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"membership": m})
}

// RemoveMember исключает пользователя из текущей организации.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := readJSON(r, &req); err != nil || req.UserID == uuid.Nil {
		h.badRequest(w, "userId is required")
		return
	}

	if err := h.svc.Tenants.RemoveMember(r.Context(), tenant(r), req.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "member removed"})
}

// ListOrganizations возвращает организации платформы с фильтром по статусу и названию.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.OrganizationFilter{
		Status: model.OrganizationStatus(q.Get("status")),
		Search: q.Get("search"),
	}

	orgs, page, err := h.svc.Tenants.List(r.Context(), identity(r), f, parsePage(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []model.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs, "pagination": page})
}

func (h *Handler) organizationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.badRequest(w, "invalid organization id")
		return uuid.Nil, false
	}
	return id, true
}

// setStatus возвращает обработчик, переводящий организацию в указанный статус.
func (h *Handler) setStatus(status model.OrganizationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.organizationID(w, r)
		if !ok {
			return
		}

		org, err := h.svc.Tenants.SetStatus(r.Context(), identity(r), id, status)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, organizationResponse{Organization: org})
	}
}

type deleteOrganizationRequest struct {
	ConfirmDelete bool `json:"confirmDelete"`
}

// DeleteOrganization удаляет организацию вместе с её данными. Требует явного подтверждения.
func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.organizationID(w, r)
	if !ok {
		return
	}

	var req deleteOrganizationRequest
	if err := readJSON(r, &req); err != nil || !req.ConfirmDelete {
		h.badRequest(w, "confirmDelete must be true")
		return
	}

	if err := h.svc.Tenants.Delete(r.Context(), identity(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "organization deleted"})
}
