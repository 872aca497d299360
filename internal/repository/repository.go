// Package repository содержит реализации хранилища: PostgreSQL и in-memory.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

var (
	// ErrNotFound возвращается, если сущность не найдена или принадлежит другой организации.
	ErrNotFound = errors.New("not found")
	// ErrConflict возвращается при нарушении уникальности (телефон клиента, номер заказа, логин).
	ErrConflict = errors.New("conflict")
	// ErrUnavailable возвращается, если хранилище недоступно.
	ErrUnavailable = errors.New("store unavailable")
)

// Ledger объединяет операции, выполняемые внутри одной транзакции хранилища.
// Все изменения, сделанные через Ledger, применяются вместе или не применяются вовсе.
type Ledger interface {
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*model.Organization, error)
	// LockCustomer читает клиента организации и блокирует его до конца транзакции.
	LockCustomer(ctx context.Context, orgID, customerID uuid.UUID) (*model.Customer, error)
	// UpdateCustomerBonus записывает новый баланс; lastVisit == nil оставляет дату визита без изменений.
	UpdateCustomerBonus(ctx context.Context, customerID uuid.UUID, totalBonus decimal.Decimal, lastVisit *time.Time) error
	// NextOrderNumber атомарно увеличивает счётчик заказов организации и возвращает новое значение.
	NextOrderNumber(ctx context.Context, orgID uuid.UUID) (int64, error)
	InsertOrder(ctx context.Context, order *model.Order) error
	// LockOrder читает заказ организации и блокирует его до конца транзакции.
	LockOrder(ctx context.Context, orgID, orderID uuid.UUID) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orgID, orderID uuid.UUID, status model.OrderStatus) error
	DeleteOrder(ctx context.Context, orgID, orderID uuid.UUID) error
}

// OrganizationFilter задаёт фильтры списка организаций для администратора платформы.
type OrganizationFilter struct {
	Status model.OrganizationStatus
	Search string
}

// CustomerFilter задаёт фильтры списка клиентов: подстрока телефона и имени без учёта регистра.
type CustomerFilter struct {
	Phone string
	Name  string
}

// OrderFilter задаёт фильтры списка заказов.
type OrderFilter struct {
	Status     model.OrderStatus
	CustomerID *uuid.UUID
	EmployeeID *uuid.UUID
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	From       *time.Time
	To         *time.Time
}
