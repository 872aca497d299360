// Package handler содержит HTTP-обработчики API кассового сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/pos-ledger/internal/analytics"
	"github.com/mmeshcher/pos-ledger/internal/middleware"
	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/repository"
	"github.com/mmeshcher/pos-ledger/internal/service"
)

const (
	maxBodyBytes = 1 << 20
	defaultLimit = 20
	maxLimit     = 100
)

// AuthService отвечает за регистрацию, вход и определение арендатора.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (model.Identity, error)
	ResolveTenant(ctx context.Context, id model.Identity, requested *uuid.UUID) (model.TenantContext, error)
	CreateSuperAdmin(ctx context.Context, actor model.Identity, username, password string) (*model.User, error)
}

// TenantService управляет организациями и их участниками.
type TenantService interface {
	Create(ctx context.Context, owner model.Identity, in service.OrganizationInput) (*model.Organization, error)
	Mine(ctx context.Context, userID uuid.UUID) ([]service.UserOrganization, error)
	Switch(ctx context.Context, userID, orgID uuid.UUID) error
	Get(ctx context.Context, orgID uuid.UUID) (*model.Organization, error)
	Current(ctx context.Context, tc model.TenantContext) (*model.Organization, error)
	Employees(ctx context.Context, tc model.TenantContext) ([]model.Employee, error)
	UpdateSettings(ctx context.Context, tc model.TenantContext, patch service.SettingsPatch) (*model.Organization, error)
	AddMember(ctx context.Context, tc model.TenantContext, userID uuid.UUID, role model.Role) (*model.Membership, error)
	RemoveMember(ctx context.Context, tc model.TenantContext, userID uuid.UUID) error
	List(ctx context.Context, id model.Identity, f repository.OrganizationFilter, p model.Page) ([]model.Organization, model.Pagination, error)
	SetStatus(ctx context.Context, id model.Identity, orgID uuid.UUID, status model.OrganizationStatus) (*model.Organization, error)
	Delete(ctx context.Context, id model.Identity, orgID uuid.UUID) error
}

// CustomerService управляет клиентами организации.
type CustomerService interface {
	Register(ctx context.Context, tc model.TenantContext, phone string, f service.CustomerFields) (*model.Customer, error)
	FindByPhone(ctx context.Context, tc model.TenantContext, phone string) (*model.Customer, error)
	Update(ctx context.Context, tc model.TenantContext, id uuid.UUID, patch service.CustomerPatch) (*model.Customer, error)
	List(ctx context.Context, tc model.TenantContext, f repository.CustomerFilter, p model.Page) ([]model.Customer, model.Pagination, error)
	Orders(ctx context.Context, tc model.TenantContext, customerID uuid.UUID) (*model.Customer, []model.Order, error)
}

// OrderService проводит заказы и их бонусный эффект.
type OrderService interface {
	Create(ctx context.Context, tc model.TenantContext, in service.CreateOrderInput) (*model.Order, *model.Customer, error)
	List(ctx context.Context, tc model.TenantContext, q service.OrderQuery, p model.Page) ([]model.Order, model.Pagination, error)
	Delete(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Customer, error)
	Cancel(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error)
	Refund(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error)
	Confirm(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error)
}

// AnalyticsService строит графики выручки и статистику.
type AnalyticsService interface {
	Monthly(ctx context.Context, s analytics.Scope) ([]analytics.Bucket, error)
	LastSevenDays(ctx context.Context, s analytics.Scope) ([]analytics.Bucket, error)
	Range(ctx context.Context, s analytics.Scope, from, to string) ([]analytics.Bucket, error)
	ExportRange(ctx context.Context, s analytics.Scope, from, to string) ([]byte, error)
	Statistics(ctx context.Context, s analytics.Scope, p analytics.Period) (*analytics.Statistics, error)
	OrganizationStatistics(ctx context.Context, s analytics.Scope, orgID uuid.UUID, p analytics.Period) (*analytics.Statistics, error)
	RevenueByOrganization(ctx context.Context, s analytics.Scope, from, to string) ([]model.OrganizationRevenue, error)
	SystemStats(ctx context.Context, s analytics.Scope) (*model.SystemStats, error)
}

// Services собирает зависимости обработчиков.
type Services struct {
	Auth      AuthService
	Tenants   TenantService
	Customers CustomerService
	Orders    OrderService
	Analytics AnalyticsService
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	svc            Services
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	production     bool
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// В production-режиме клиент не видит подробностей внутренних ошибок.
func NewHandler(s Services, logger *zap.Logger, auth *middleware.AuthMiddleware, production bool) *Handler {
	return &Handler{
		svc:            s,
		logger:         logger,
		authMiddleware: auth,
		production:     production,
	}
}

type errorResponse struct {
	Message        string           `json:"message"`
	Error          string           `json:"error,omitempty"`
	AvailableBonus *decimal.Decimal `json:"availableBonus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, out)
}

// fail переводит ошибку сервиса в HTTP-ответ.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *service.InsufficientBonusError
	switch {
	case errors.As(err, &insufficient):
		available := insufficient.Available
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "insufficient bonus", AvailableBonus: &available})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, analytics.ErrInvalidInput),
		errors.Is(err, middleware.ErrBadOrganizationHeader):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, repository.ErrConflict):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "already exists or already processed"})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "invalid credentials"})
	case errors.Is(err, service.ErrForbidden), errors.Is(err, analytics.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "forbidden"})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "not found"})
	case errors.Is(err, repository.ErrUnavailable):
		h.logger.Warn("store unavailable", zap.Error(err), zap.String("path", r.URL.Path))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "service temporarily unavailable"})
	default:
		h.logger.Error("request failed", zap.Error(err), zap.String("method", r.Method), zap.String("path", r.URL.Path))
		resp := errorResponse{Message: "internal server error"}
		if !h.production {
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Message: msg})
}

func identity(r *http.Request) model.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}

func tenant(r *http.Request) model.TenantContext {
	tc, _ := middleware.TenantFromContext(r.Context())
	return tc
}

// parsePage читает page и limit; некорректные значения заменяются значениями по умолчанию.
func parsePage(r *http.Request) model.Page {
	q := r.URL.Query()
	p := model.Page{Number: 1, Limit: defaultLimit}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, maxLimit)
	}
	return p
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseOptionalDecimal(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string     `json:"token"`
	UserID uuid.UUID  `json:"userId"`
	Role   model.Role `json:"role"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	u, err := h.svc.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeToken(w, r, http.StatusCreated, model.Identity{UserID: u.ID, Role: u.Role})
}

// Login выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		h.badRequest(w, "username and password are required")
		return
	}

	id, err := h.svc.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeToken(w, r, http.StatusOK, id)
}

// CreateSuperAdmin создаёт ещё одного администратора платформы.
func (h *Handler) CreateSuperAdmin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	u, err := h.svc.Auth.CreateSuperAdmin(r.Context(), identity(r), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (h *Handler) writeToken(w http.ResponseWriter, r *http.Request, status int, id model.Identity) {
	token, err := h.authMiddleware.IssueToken(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, UserID: id.UserID, Role: id.Role})
}
