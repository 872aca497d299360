package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

const customerColumns = `id, organization_id, phone, name, email, address, notes, total_bonus, last_visit,
	is_active, created_by, created_at, updated_at`

func scanCustomer(row pgx.Row) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Phone, &c.Name, &c.Email, &c.Address, &c.Notes,
		&c.TotalBonus, &c.LastVisit, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer регистрирует клиента. Повтор телефона в той же организации возвращает ErrConflict.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c *model.Customer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (id, organization_id, phone, name, email, address, notes, total_bonus,
			last_visit, is_active, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		c.ID, c.OrganizationID, c.Phone, c.Name, c.Email, c.Address, c.Notes, c.TotalBonus,
		c.LastVisit, c.IsActive, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return classify("insert customer", err)
	}
	return nil
}

// GetCustomer возвращает клиента организации по идентификатору.
func (r *PostgresRepository) GetCustomer(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND organization_id = $2`,
		id, orgID,
	))
	if err != nil {
		return nil, classify("get customer", err)
	}
	return c, nil
}

// GetCustomerByPhone возвращает клиента организации по номеру телефона.
func (r *PostgresRepository) GetCustomerByPhone(ctx context.Context, orgID uuid.UUID, phone string) (*model.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE organization_id = $1 AND phone = $2`,
		orgID, phone,
	))
	if err != nil {
		return nil, classify("get customer by phone", err)
	}
	return c, nil
}

// UpdateCustomer сохраняет профиль клиента. Бонусный баланс здесь не меняется.
func (r *PostgresRepository) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE customers
		 SET phone = $3, name = $4, email = $5, address = $6, notes = $7, is_active = $8, updated_at = now()
		 WHERE id = $1 AND organization_id = $2
		 RETURNING total_bonus, last_visit, updated_at`,
		c.ID, c.OrganizationID, c.Phone, c.Name, c.Email, c.Address, c.Notes, c.IsActive,
	).Scan(&c.TotalBonus, &c.LastVisit, &c.UpdatedAt)
	if err != nil {
		return classify("update customer", err)
	}
	return nil
}

// ListCustomers возвращает страницу клиентов организации, новые первыми.
func (r *PostgresRepository) ListCustomers(ctx context.Context, orgID uuid.UUID, f CustomerFilter, p model.Page) ([]model.Customer, int, error) {
	conds := []string{"organization_id = $1"}
	args := []any{orgID}
	if f.Phone != "" {
		args = append(args, "%"+f.Phone+"%")
		conds = append(conds, fmt.Sprintf("phone ILIKE $%d", len(args)))
	}
	if f.Name != "" {
		args = append(args, "%"+f.Name+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count customers", err)
	}

	args = append(args, p.Limit, p.Offset())
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM customers%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			customerColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, classify("select customers", err)
	}
	defer rows.Close()

	var res []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// GetOrganization читает организацию внутри транзакции.
func (l *pgLedger) GetOrganization(ctx context.Context, orgID uuid.UUID) (*model.Organization, error) {
	return getOrganization(ctx, l.tx, orgID)
}

// LockCustomer блокирует строку клиента, чтобы параллельные заказы одного клиента выполнялись последовательно.
func (l *pgLedger) LockCustomer(ctx context.Context, orgID, customerID uuid.UUID) (*model.Customer, error) {
	c, err := scanCustomer(l.tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		customerID, orgID,
	))
	if err != nil {
		return nil, classify("lock customer", err)
	}
	return c, nil
}

// UpdateCustomerBonus записывает баланс клиента.
func (l *pgLedger) UpdateCustomerBonus(ctx context.Context, customerID uuid.UUID, totalBonus decimal.Decimal, lastVisit *time.Time) error {
	tag, err := l.tx.Exec(ctx,
		`UPDATE customers
		 SET total_bonus = $2, last_visit = COALESCE($3, last_visit), updated_at = now()
		 WHERE id = $1`,
		customerID, totalBonus, lastVisit,
	)
	if err != nil {
		return classify("update customer bonus", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update customer bonus: %w", ErrNotFound)
	}
	return nil
}
