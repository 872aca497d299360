// Package model содержит доменные сущности POS-сервиса: организации, клиентов, заказы и пользователей.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrganizationStatus описывает состояние организации (арендатора).
type OrganizationStatus string

const (
	OrganizationActive    OrganizationStatus = "active"
	OrganizationInactive  OrganizationStatus = "inactive"
	OrganizationSuspended OrganizationStatus = "suspended"
)

// Valid сообщает, является ли статус допустимым значением.
func (s OrganizationStatus) Valid() bool {
	switch s {
	case OrganizationActive, OrganizationInactive, OrganizationSuspended:
		return true
	}
	return false
}

// Значения по умолчанию для новой организации.
var (
	DefaultBonusPercentage = decimal.RequireFromString("0.05")
)

const (
	DefaultOrderPrefix  = "ORD"
	DefaultBusinessType = "laundry"
	DefaultCurrency     = "MNT"
)

// Organization представляет арендатора и его настройки бонусной программы.
type Organization struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	BusinessType      string             `json:"businessType"`
	Address           string             `json:"address,omitempty"`
	Phone             string             `json:"phone,omitempty"`
	Email             string             `json:"email,omitempty"`
	Currency          string             `json:"currency"`
	BonusPercentage   decimal.Decimal    `json:"bonusPercentage"`
	OrderPrefix       string             `json:"orderPrefix"`
	Status            OrganizationStatus `json:"status"`
	OwnerID           uuid.UUID          `json:"ownerId"`
	AutoConfirmOrders bool               `json:"autoConfirmOrders"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Customer описывает клиента организации с накопленным бонусным балансом.
type Customer struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	Phone          string          `json:"phone"`
	Name           *string         `json:"name"`
	Email          *string         `json:"email,omitempty"`
	Address        *string         `json:"address,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	TotalBonus     decimal.Decimal `json:"totalBonus"`
	LastVisit      *time.Time      `json:"lastVisit,omitempty"`
	IsActive       bool            `json:"isActive"`
	CreatedBy      *uuid.UUID      `json:"createdBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// Valid сообщает, является ли статус допустимым значением.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Reversed сообщает, что бонусный эффект заказа уже отменён.
func (s OrderStatus) Reversed() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentQPay   PaymentMethod = "qpay"
	PaymentMonPay PaymentMethod = "monpay"
	PaymentHiPay  PaymentMethod = "hipay"
	PaymentBonus  PaymentMethod = "bonus"
)

// OrderItem описывает позицию заказа.
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Order описывает заказ организации и его влияние на бонусный баланс клиента.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	OrderNumber    string          `json:"orderNumber"`
	CustomerID     *uuid.UUID      `json:"customerId"`
	EmployeeID     uuid.UUID       `json:"employeeId"`
	Items          []OrderItem     `json:"items"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	UsedBonus      decimal.Decimal `json:"usedBonus"`
	EarnedBonus    decimal.Decimal `json:"earnedBonus"`
	Status         OrderStatus     `json:"status"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	Notes          *string         `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// User представляет учётную запись сотрудника или администратора платформы.
type User struct {
	ID                    uuid.UUID  `json:"id"`
	Username              string     `json:"username"`
	PasswordHash          []byte     `json:"-"`
	Role                  Role       `json:"role"`
	DefaultOrganizationID *uuid.UUID `json:"defaultOrganizationId,omitempty"`
	IsActive              bool       `json:"isActive"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// Membership связывает пользователя с организацией и его ролью в ней.
type Membership struct {
	UserID         uuid.UUID `json:"userId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Role           Role      `json:"role"`
	IsActive       bool      `json:"isActive"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// Employee описывает участника организации вместе с его ролью в ней.
type Employee struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"isActive"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Page задаёт параметры постраничной выборки.
type Page struct {
	Number int
	Limit  int
}

// Offset возвращает смещение первой записи страницы.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Pagination описывает метаданные постраничного ответа.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	Total       int `json:"total"`
	Limit       int `json:"limit"`
}

// NewPagination рассчитывает метаданные для страницы p при общем количестве total.
func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{
		CurrentPage: p.Number,
		TotalPages:  pages,
		Total:       total,
		Limit:       p.Limit,
	}
}
