// Package service реализует бизнес-логику POS-сервиса: организации, клиентов, заказы и аутентификацию.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/policy"
	"github.com/mmeshcher/pos-ledger/internal/repository"
)

var (
	// ErrInvalidInput возвращается при отсутствии или некорректности обязательных полей.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden возвращается, если роли не хватает прав или нет доступа к организации.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInsufficientBonus возвращается, если списание превышает бонусный баланс клиента.
	ErrInsufficientBonus = errors.New("insufficient bonus")
)

// InsufficientBonusError сообщает доступный баланс клиента.
type InsufficientBonusError struct {
	Available decimal.Decimal
}

func (e *InsufficientBonusError) Error() string {
	return fmt.Sprintf("insufficient bonus: available %s", e.Available.StringFixed(2))
}

// Is позволяет сравнивать ошибку с ErrInsufficientBonus через errors.Is.
func (e *InsufficientBonusError) Is(target error) bool {
	return target == ErrInsufficientBonus
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func authorize(role model.Role, action policy.Action) error {
	if !policy.CanPerform(role, action) {
		return fmt.Errorf("%w: %s requires another role", ErrForbidden, action)
	}
	return nil
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	WithinTx(ctx context.Context, fn func(l repository.Ledger) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error)
	CountMemberships(ctx context.Context, userID uuid.UUID, roles ...model.Role) (int, error)
	AddMembership(ctx context.Context, m *model.Membership) error
	RemoveMembership(ctx context.Context, userID, orgID uuid.UUID) error
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]model.Employee, error)
	SetDefaultOrganization(ctx context.Context, userID, orgID uuid.UUID) error

	CreateOrganization(ctx context.Context, o *model.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	UpdateOrganization(ctx context.Context, o *model.Organization) error
	SetOrganizationStatus(ctx context.Context, id uuid.UUID, status model.OrganizationStatus) (*model.Organization, error)
	DeleteOrganization(ctx context.Context, id uuid.UUID) error
	ListOrganizations(ctx context.Context, f repository.OrganizationFilter, p model.Page) ([]model.Organization, int, error)
	ListUserOrganizations(ctx context.Context, userID uuid.UUID) ([]model.Organization, []model.Membership, error)

	CreateCustomer(ctx context.Context, c *model.Customer) error
	GetCustomer(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error)
	GetCustomerByPhone(ctx context.Context, orgID uuid.UUID, phone string) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, c *model.Customer) error
	ListCustomers(ctx context.Context, orgID uuid.UUID, f repository.CustomerFilter, p model.Page) ([]model.Customer, int, error)

	GetOrder(ctx context.Context, orgID, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, orgID uuid.UUID, f repository.OrderFilter, p model.Page) ([]model.Order, int, error)
}

// OrganizationCache описывает необязательный кэш настроек организаций.
type OrganizationCache interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	Set(ctx context.Context, org *model.Organization) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// Option настраивает Service.
type Option func(*options)

type options struct {
	cache  OrganizationCache
	logger *zap.Logger
	now    func() time.Time
	loc    *time.Location
	cost   int
}

// WithCache подключает кэш организаций.
func WithCache(c OrganizationCache) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger задаёт логгер для некритичных ошибок (например, недоступности кэша).
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation задаёт часовой пояс, в котором фильтры по датам трактуют границы дней.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithBcryptCost задаёт стоимость хеширования паролей.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.cost = cost }
}

// Service объединяет компоненты бизнес-логики поверх одного хранилища.
type Service struct {
	repo Repository

	Tenants   *Tenants
	Customers *Customers
	Orders    *Orders
	Auth      *Auth
}

// NewService создаёт сервис с указанным репозиторием.
func NewService(repo Repository, opts ...Option) *Service {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
		loc:    time.UTC,
		cost:   defaultBcryptCost,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tenants := &Tenants{repo: repo, cache: o.cache, logger: o.logger}
	return &Service{
		repo:      repo,
		Tenants:   tenants,
		Customers: &Customers{repo: repo},
		Orders:    &Orders{repo: repo, now: o.now, loc: o.loc},
		Auth:      &Auth{repo: repo, tenants: tenants, logger: o.logger, cost: o.cost},
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
