package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

const orderColumns = `id, organization_id, order_number, customer_id, employee_id, items, total_price,
	used_bonus, earned_bonus, status, payment_method, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o             model.Order
		status, payBy string
	)
	err := row.Scan(&o.ID, &o.OrganizationID, &o.OrderNumber, &o.CustomerID, &o.EmployeeID, &o.Items,
		&o.TotalPrice, &o.UsedBonus, &o.EarnedBonus, &status, &payBy, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentMethod = model.PaymentMethod(payBy)
	return &o, nil
}

// GetOrder возвращает заказ организации по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orgID, id uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND organization_id = $2`,
		id, orgID,
	))
	if err != nil {
		return nil, classify("get order", err)
	}
	return o, nil
}

// ListOrders возвращает страницу заказов организации, новые первыми. p.Limit <= 0 снимает ограничение.
func (r *PostgresRepository) ListOrders(ctx context.Context, orgID uuid.UUID, f OrderFilter, p model.Page) ([]model.Order, int, error) {
	conds := []string{"organization_id = $1"}
	args := []any{orgID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.CustomerID != nil {
		add("customer_id = $%d", *f.CustomerID)
	}
	if f.EmployeeID != nil {
		add("employee_id = $%d", *f.EmployeeID)
	}
	if f.MinPrice != nil {
		add("total_price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("total_price <= $%d", *f.MaxPrice)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count orders", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC`
	if p.Limit > 0 {
		args = append(args, p.Limit, p.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("select orders", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// NextOrderNumber увеличивает счётчик организации. Строка счётчика остаётся заблокированной
// до конца транзакции, поэтому номера идут без пропусков и повторов.
func (l *pgLedger) NextOrderNumber(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var next int64
	err := l.tx.QueryRow(ctx,
		`INSERT INTO order_sequences (organization_id, last_value) VALUES ($1, 1)
		 ON CONFLICT (organization_id) DO UPDATE SET last_value = order_sequences.last_value + 1
		 RETURNING last_value`,
		orgID,
	).Scan(&next)
	if err != nil {
		return 0, classify("next order number", err)
	}
	return next, nil
}

// InsertOrder сохраняет заказ. Повтор номера в организации возвращает ErrConflict.
func (l *pgLedger) InsertOrder(ctx context.Context, o *model.Order) error {
	err := l.tx.QueryRow(ctx,
		`INSERT INTO orders (id, organization_id, order_number, customer_id, employee_id, items, total_price,
			used_bonus, earned_bonus, status, payment_method, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		o.ID, o.OrganizationID, o.OrderNumber, o.CustomerID, o.EmployeeID, o.Items, o.TotalPrice,
		o.UsedBonus, o.EarnedBonus, string(o.Status), string(o.PaymentMethod), o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return classify("insert order", err)
	}
	return nil
}

// LockOrder блокирует строку заказа до конца транзакции.
func (l *pgLedger) LockOrder(ctx context.Context, orgID, orderID uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(l.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		orderID, orgID,
	))
	if err != nil {
		return nil, classify("lock order", err)
	}
	return o, nil
}

// UpdateOrderStatus меняет статус заказа.
func (l *pgLedger) UpdateOrderStatus(ctx context.Context, orgID, orderID uuid.UUID, status model.OrderStatus) error {
	tag, err := l.tx.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND organization_id = $2`,
		orderID, orgID, string(status),
	)
	if err != nil {
		return classify("update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update order status: %w", ErrNotFound)
	}
	return nil
}

// DeleteOrder удаляет заказ.
func (l *pgLedger) DeleteOrder(ctx context.Context, orgID, orderID uuid.UUID) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND organization_id = $2`, orderID, orgID)
	if err != nil {
		return classify("delete order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete order: %w", ErrNotFound)
	}
	return nil
}
