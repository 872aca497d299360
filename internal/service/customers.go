package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/money"
	"github.com/mmeshcher/pos-ledger/internal/policy"
	"github.com/mmeshcher/pos-ledger/internal/repository"
	"github.com/mmeshcher/pos-ledger/internal/validation"
)

// Customers ведёт клиентов организации и их бонусные балансы.
type Customers struct {
	repo Repository
}

// CustomerFields содержит необязательные поля клиента.
type CustomerFields struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

// CustomerPatch описывает изменение профиля клиента. Бонусный баланс через него не меняется.
type CustomerPatch struct {
	CustomerFields
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"isActive"`
}

func normalizePhone(phone string) (string, error) {
	p := validation.NormalizePhone(phone)
	if p == "" {
		return "", invalid("phone is required")
	}
	if !validation.IsValidPhone(p) {
		return "", invalid("phone %q is not valid", phone)
	}
	return p, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Register регистрирует клиента в организации. Повтор телефона внутри организации возвращает ErrConflict.
func (c *Customers) Register(ctx context.Context, tc model.TenantContext, phone string, f CustomerFields) (*model.Customer, error) {
	if err := authorize(tc.Role, policy.ActionManageCustomers); err != nil {
		return nil, err
	}
	p, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	createdBy := tc.UserID
	cust := &model.Customer{
		ID:             uuid.New(),
		OrganizationID: tc.OrganizationID,
		Phone:          p,
		Name:           trimmed(f.Name),
		Email:          trimmed(f.Email),
		Address:        trimmed(f.Address),
		Notes:          trimmed(f.Notes),
		TotalBonus:     decimal.Zero,
		IsActive:       true,
		CreatedBy:      &createdBy,
	}
	if err := c.repo.CreateCustomer(ctx, cust); err != nil {
		return nil, fmt.Errorf("register customer: %w", err)
	}
	return cust, nil
}

// FindByPhone ищет клиента организации по телефону.
func (c *Customers) FindByPhone(ctx context.Context, tc model.TenantContext, phone string) (*model.Customer, error) {
	if err := authorize(tc.Role, policy.ActionViewCustomers); err != nil {
		return nil, err
	}
	p, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return c.repo.GetCustomerByPhone(ctx, tc.OrganizationID, p)
}

// Get возвращает клиента организации. Клиент другой организации неотличим от отсутствующего.
func (c *Customers) Get(ctx context.Context, tc model.TenantContext, id uuid.UUID) (*model.Customer, error) {
	if err := authorize(tc.Role, policy.ActionViewCustomers); err != nil {
		return nil, err
	}
	return c.repo.GetCustomer(ctx, tc.OrganizationID, id)
}

// Update меняет профиль клиента.
func (c *Customers) Update(ctx context.Context, tc model.TenantContext, id uuid.UUID, patch CustomerPatch) (*model.Customer, error) {
	if err := authorize(tc.Role, policy.ActionManageCustomers); err != nil {
		return nil, err
	}
	cust, err := c.repo.GetCustomer(ctx, tc.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	if patch.Phone != nil {
		p, err := normalizePhone(*patch.Phone)
		if err != nil {
			return nil, err
		}
		cust.Phone = p
	}
	if patch.Name != nil {
		cust.Name = trimmed(patch.Name)
	}
	if patch.Email != nil {
		cust.Email = trimmed(patch.Email)
	}
	if patch.Address != nil {
		cust.Address = trimmed(patch.Address)
	}
	if patch.Notes != nil {
		cust.Notes = trimmed(patch.Notes)
	}
	if patch.IsActive != nil {
		cust.IsActive = *patch.IsActive
	}

	if err := c.repo.UpdateCustomer(ctx, cust); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return cust, nil
}

// AdjustBonus изменяет бонусный баланс клиента на delta в отдельной транзакции.
// Баланс не может стать отрицательным.
func (c *Customers) AdjustBonus(ctx context.Context, tc model.TenantContext, id uuid.UUID, delta decimal.Decimal) (*model.Customer, error) {
	if err := authorize(tc.Role, policy.ActionManageCustomers); err != nil {
		return nil, err
	}

	var res *model.Customer
	err := c.repo.WithinTx(ctx, func(l repository.Ledger) error {
		cust, err := adjustBonus(ctx, l, tc.OrganizationID, id, delta, nil, false)
		if err != nil {
			return err
		}
		res = cust
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// adjustBonus единственный меняет баланс и работает под блокировкой
// строки клиента. visit != nil обновляет дату последнего визита.
// allowNegative разрешает отрицательный итог при откате уже потраченных начислений.
func adjustBonus(ctx context.Context, l repository.Ledger, orgID, customerID uuid.UUID, delta decimal.Decimal, visit *time.Time, allowNegative bool) (*model.Customer, error) {
	cust, err := l.LockCustomer(ctx, orgID, customerID)
	if err != nil {
		return nil, err
	}
	next := money.Round2(cust.TotalBonus.Add(delta))
	if next.IsNegative() && !allowNegative {
		return nil, &InsufficientBonusError{Available: cust.TotalBonus}
	}
	if err := l.UpdateCustomerBonus(ctx, cust.ID, next, visit); err != nil {
		return nil, err
	}
	cust.TotalBonus = next
	if visit != nil {
		cust.LastVisit = visit
	}
	return cust, nil
}

// List возвращает страницу клиентов организации.
func (c *Customers) List(ctx context.Context, tc model.TenantContext, f repository.CustomerFilter, p model.Page) ([]model.Customer, model.Pagination, error) {
	if err := authorize(tc.Role, policy.ActionViewCustomers); err != nil {
		return nil, model.Pagination{}, err
	}
	f.Phone = validation.NormalizePhone(f.Phone)
	f.Name = strings.TrimSpace(f.Name)

	customers, total, err := c.repo.ListCustomers(ctx, tc.OrganizationID, f, p)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return customers, model.NewPagination(p, total), nil
}

// Orders возвращает историю оплаченных заказов клиента, новые первыми.
func (c *Customers) Orders(ctx context.Context, tc model.TenantContext, customerID uuid.UUID) (*model.Customer, []model.Order, error) {
	if err := authorize(tc.Role, policy.ActionViewOrders); err != nil {
		return nil, nil, err
	}
	cust, err := c.repo.GetCustomer(ctx, tc.OrganizationID, customerID)
	if err != nil {
		return nil, nil, err
	}
	orders, _, err := c.repo.ListOrders(ctx, tc.OrganizationID, repository.OrderFilter{
		Status:     model.OrderStatusPaid,
		CustomerID: &customerID,
	}, model.Page{})
	if err != nil {
		return nil, nil, err
	}
	return cust, orders, nil
}
