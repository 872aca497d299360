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

// Orders рассчитывает суммы и бонусы заказов, нумерует, отменяет и возвращает их.
type Orders struct {
	repo Repository
	now  func() time.Time
	loc  *time.Location
}

// CreateOrderInput содержит данные нового заказа.
type CreateOrderInput struct {
	CustomerID    *uuid.UUID          `json:"customerId"`
	Items         []model.OrderItem   `json:"items"`
	UsedBonus     decimal.Decimal     `json:"usedBonus"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
	Notes         *string             `json:"notes"`
}

// OrderQuery задаёт фильтры списка заказов. Даты задаются в формате YYYY-MM-DD и включают день целиком.
type OrderQuery struct {
	Status     model.OrderStatus
	CustomerID *uuid.UUID
	EmployeeID *uuid.UUID
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	StartDate  string
	EndDate    string
}

// FormatOrderNumber возвращает номер заказа вида PREFIX-0001.
func FormatOrderNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

func normalizeItems(items []model.OrderItem) ([]model.OrderItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, invalid("items are required")
	}
	res := make([]model.OrderItem, 0, len(items))
	total := decimal.Zero
	for i, it := range items {
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		if it.Quantity < 0 {
			return nil, decimal.Zero, invalid("item %d: quantity must be positive", i)
		}
		if it.Price.IsNegative() {
			return nil, decimal.Zero, invalid("item %d: price must not be negative", i)
		}
		it.Name = strings.TrimSpace(it.Name)
		total = total.Add(money.LineTotal(it.Price, it.Quantity))
		res = append(res, it)
	}
	return res, money.Round2(total), nil
}

// Create оформляет заказ. Заказ и изменение баланса клиента сохраняются в одной транзакции:
// клиент блокируется, списание проверяется по заблокированному балансу, номер берётся из счётчика организации.
func (o *Orders) Create(ctx context.Context, tc model.TenantContext, in CreateOrderInput) (*model.Order, *model.Customer, error) {
	if err := authorize(tc.Role, policy.ActionCreateOrder); err != nil {
		return nil, nil, err
	}
	items, itemsTotal, err := normalizeItems(in.Items)
	if err != nil {
		return nil, nil, err
	}
	if in.UsedBonus.IsNegative() {
		return nil, nil, invalid("usedBonus must not be negative")
	}
	method := in.PaymentMethod
	if method == "" {
		method = model.PaymentCash
	}
	if !validation.IsValidPaymentMethod(method) {
		return nil, nil, invalid("unknown payment method %q", method)
	}

	var (
		order    *model.Order
		customer *model.Customer
	)
	err = o.repo.WithinTx(ctx, func(l repository.Ledger) error {
		org, err := l.GetOrganization(ctx, tc.OrganizationID)
		if err != nil {
			return err
		}

		ord := &model.Order{
			ID:             uuid.New(),
			OrganizationID: tc.OrganizationID,
			EmployeeID:     tc.UserID,
			Items:          items,
			TotalPrice:     itemsTotal,
			UsedBonus:      decimal.Zero,
			EarnedBonus:    decimal.Zero,
			Status:         model.OrderStatusPaid,
			PaymentMethod:  method,
			Notes:          trimmed(in.Notes),
		}
		if !org.AutoConfirmOrders {
			ord.Status = model.OrderStatusPending
		}

		if in.CustomerID != nil {
			cust, err := l.LockCustomer(ctx, tc.OrganizationID, *in.CustomerID)
			if err != nil {
				return err
			}
			used := money.Round2(in.UsedBonus)
			if used.GreaterThan(cust.TotalBonus) {
				return &InsufficientBonusError{Available: cust.TotalBonus}
			}
			// Списание ограничено суммой позиций.
			used = decimal.Min(used, itemsTotal)

			ord.CustomerID = &cust.ID
			ord.UsedBonus = used
			ord.TotalPrice = money.NonNegative(money.Round2(itemsTotal.Sub(used)))
			ord.EarnedBonus = money.Round2(ord.TotalPrice.Mul(org.BonusPercentage))
		}

		seq, err := l.NextOrderNumber(ctx, tc.OrganizationID)
		if err != nil {
			return err
		}
		ord.OrderNumber = FormatOrderNumber(org.OrderPrefix, seq)

		if err := l.InsertOrder(ctx, ord); err != nil {
			return err
		}

		var cust *model.Customer
		if ord.CustomerID != nil {
			visit := o.now()
			cust, err = adjustBonus(ctx, l, tc.OrganizationID, *ord.CustomerID, ord.EarnedBonus.Sub(ord.UsedBonus), &visit, false)
			if err != nil {
				return err
			}
		}

		order, customer = ord, cust
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}
	return order, customer, nil
}

// reverse возвращает клиенту списанные бонусы и забирает начисленные.
func reverse(ctx context.Context, l repository.Ledger, ord *model.Order) (*model.Customer, error) {
	if ord.CustomerID == nil || (ord.UsedBonus.IsZero() && ord.EarnedBonus.IsZero()) {
		return nil, nil
	}
	return adjustBonus(ctx, l, ord.OrganizationID, *ord.CustomerID, ord.UsedBonus.Sub(ord.EarnedBonus), nil, true)
}

// Delete удаляет заказ и откатывает его бонусный эффект, если он ещё не был отменён.
func (o *Orders) Delete(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Customer, error) {
	if err := authorize(tc.Role, policy.ActionDeleteOrder); err != nil {
		return nil, err
	}

	var customer *model.Customer
	err := o.repo.WithinTx(ctx, func(l repository.Ledger) error {
		ord, err := l.LockOrder(ctx, tc.OrganizationID, orderID)
		if err != nil {
			return err
		}
		if !ord.Status.Reversed() {
			if customer, err = reverse(ctx, l, ord); err != nil {
				return err
			}
		}
		return l.DeleteOrder(ctx, tc.OrganizationID, orderID)
	})
	if err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}
	return customer, nil
}

// Cancel переводит заказ в CANCELLED и откатывает его бонусный эффект.
func (o *Orders) Cancel(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error) {
	return o.close(ctx, tc, orderID, model.OrderStatusCancelled)
}

// Refund переводит заказ в REFUNDED и откатывает его бонусный эффект.
func (o *Orders) Refund(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error) {
	return o.close(ctx, tc, orderID, model.OrderStatusRefunded)
}

func (o *Orders) close(ctx context.Context, tc model.TenantContext, orderID uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if err := authorize(tc.Role, policy.ActionCancelOrder); err != nil {
		return nil, err
	}

	var res *model.Order
	err := o.repo.WithinTx(ctx, func(l repository.Ledger) error {
		ord, err := l.LockOrder(ctx, tc.OrganizationID, orderID)
		if err != nil {
			return err
		}
		if ord.Status.Reversed() {
			return fmt.Errorf("order %s is already %s: %w", ord.OrderNumber, ord.Status, repository.ErrConflict)
		}
		if _, err := reverse(ctx, l, ord); err != nil {
			return err
		}
		if err := l.UpdateOrderStatus(ctx, tc.OrganizationID, orderID, status); err != nil {
			return err
		}
		ord.Status = status
		ord.UpdatedAt = o.now()
		res = ord
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s order: %w", strings.ToLower(string(status)), err)
	}
	return res, nil
}

// Confirm переводит заказ из PENDING в PAID.
func (o *Orders) Confirm(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error) {
	if err := authorize(tc.Role, policy.ActionConfirmOrder); err != nil {
		return nil, err
	}

	var res *model.Order
	err := o.repo.WithinTx(ctx, func(l repository.Ledger) error {
		ord, err := l.LockOrder(ctx, tc.OrganizationID, orderID)
		if err != nil {
			return err
		}
		if ord.Status != model.OrderStatusPending {
			return fmt.Errorf("order %s is %s: %w", ord.OrderNumber, ord.Status, repository.ErrConflict)
		}
		if err := l.UpdateOrderStatus(ctx, tc.OrganizationID, orderID, model.OrderStatusPaid); err != nil {
			return err
		}
		ord.Status = model.OrderStatusPaid
		ord.UpdatedAt = o.now()
		res = ord
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm order: %w", err)
	}
	return res, nil
}

// Get возвращает заказ организации.
func (o *Orders) Get(ctx context.Context, tc model.TenantContext, orderID uuid.UUID) (*model.Order, error) {
	if err := authorize(tc.Role, policy.ActionViewOrders); err != nil {
		return nil, err
	}
	return o.repo.GetOrder(ctx, tc.OrganizationID, orderID)
}

func (o *Orders) parseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, s, o.loc)
	if err != nil {
		return time.Time{}, invalid("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// List возвращает страницу заказов организации, новые первыми.
func (o *Orders) List(ctx context.Context, tc model.TenantContext, q OrderQuery, p model.Page) ([]model.Order, model.Pagination, error) {
	if err := authorize(tc.Role, policy.ActionViewOrders); err != nil {
		return nil, model.Pagination{}, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, model.Pagination{}, invalid("unknown status %q", q.Status)
	}

	f := repository.OrderFilter{
		Status:     q.Status,
		CustomerID: q.CustomerID,
		EmployeeID: q.EmployeeID,
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
	}
	if q.StartDate != "" {
		from, err := o.parseDay(q.StartDate)
		if err != nil {
			return nil, model.Pagination{}, err
		}
		f.From = &from
	}
	if q.EndDate != "" {
		end, err := o.parseDay(q.EndDate)
		if err != nil {
			return nil, model.Pagination{}, err
		}
		to := end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		f.To = &to
	}

	orders, total, err := o.repo.ListOrders(ctx, tc.OrganizationID, f, p)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return orders, model.NewPagination(p, total), nil
}
