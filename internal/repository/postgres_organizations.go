package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

const organizationColumns = `id, name, business_type, address, phone, email, currency, bonus_percentage,
	order_prefix, status, owner_id, auto_confirm_orders, created_at, updated_at`

func scanOrganization(row pgx.Row) (*model.Organization, error) {
	var (
		o      model.Organization
		status string
	)
	err := row.Scan(&o.ID, &o.Name, &o.BusinessType, &o.Address, &o.Phone, &o.Email, &o.Currency,
		&o.BonusPercentage, &o.OrderPrefix, &status, &o.OwnerID, &o.AutoConfirmOrders, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrganizationStatus(status)
	return &o, nil
}

func getOrganization(ctx context.Context, q queryer, id uuid.UUID) (*model.Organization, error) {
	o, err := scanOrganization(q.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get organization", err)
	}
	return o, nil
}

// CreateOrganization создаёт организацию, членство владельца и, если у владельца не было
// организации по умолчанию, назначает её.
func (r *PostgresRepository) CreateOrganization(ctx context.Context, o *model.Organization) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO organizations (id, name, business_type, address, phone, email, currency, bonus_percentage,
			order_prefix, status, owner_id, auto_confirm_orders)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		o.ID, o.Name, o.BusinessType, o.Address, o.Phone, o.Email, o.Currency, o.BonusPercentage,
		o.OrderPrefix, string(o.Status), o.OwnerID, o.AutoConfirmOrders,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return classify("insert organization", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO memberships (user_id, organization_id, role) VALUES ($1, $2, $3)`,
		o.OwnerID, o.ID, string(model.RoleOwner),
	)
	if err != nil {
		return classify("insert owner membership", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET default_organization_id = $2 WHERE id = $1 AND default_organization_id IS NULL`,
		o.OwnerID, o.ID,
	)
	if err != nil {
		return classify("set default organization", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// GetOrganization возвращает организацию по идентификатору.
func (r *PostgresRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	return getOrganization(ctx, r.pool, id)
}

// UpdateOrganization сохраняет изменяемые настройки организации. Владелец не меняется.
func (r *PostgresRepository) UpdateOrganization(ctx context.Context, o *model.Organization) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE organizations
		 SET name = $2, business_type = $3, address = $4, phone = $5, email = $6, currency = $7,
		     bonus_percentage = $8, order_prefix = $9, auto_confirm_orders = $10, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		o.ID, o.Name, o.BusinessType, o.Address, o.Phone, o.Email, o.Currency,
		o.BonusPercentage, o.OrderPrefix, o.AutoConfirmOrders,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return classify("update organization", err)
	}
	return nil
}

// SetOrganizationStatus меняет статус организации.
func (r *PostgresRepository) SetOrganizationStatus(ctx context.Context, id uuid.UUID, status model.OrganizationStatus) (*model.Organization, error) {
	o, err := scanOrganization(r.pool.QueryRow(ctx,
		`UPDATE organizations SET status = $2, updated_at = now() WHERE id = $1
		 RETURNING `+organizationColumns,
		id, string(status),
	))
	if err != nil {
		return nil, classify("set organization status", err)
	}
	return o, nil
}

// DeleteOrganization удаляет организацию; клиенты, заказы, счётчики и членства удаляются каскадно.
func (r *PostgresRepository) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return classify("delete organization", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete organization: %w", ErrNotFound)
	}
	return nil
}

// ListOrganizations возвращает страницу организаций и их общее количество.
func (r *PostgresRepository) ListOrganizations(ctx context.Context, f OrganizationFilter, p model.Page) ([]model.Organization, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM organizations`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count organizations", err)
	}

	args = append(args, p.Limit, p.Offset())
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM organizations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			organizationColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, classify("select organizations", err)
	}
	defer rows.Close()

	var res []model.Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan organization: %w", err)
		}
		res = append(res, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// ListUserOrganizations возвращает активные организации пользователя вместе с его ролями в них.
func (r *PostgresRepository) ListUserOrganizations(ctx context.Context, userID uuid.UUID) ([]model.Organization, []model.Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.name, o.business_type, o.address, o.phone, o.email, o.currency, o.bonus_percentage,
		        o.order_prefix, o.status, o.owner_id, o.auto_confirm_orders, o.created_at, o.updated_at,
		        m.role, m.joined_at
		 FROM memberships m
		 JOIN organizations o ON o.id = m.organization_id
		 WHERE m.user_id = $1 AND m.is_active AND o.status = $2
		 ORDER BY m.joined_at`,
		userID, string(model.OrganizationActive),
	)
	if err != nil {
		return nil, nil, classify("select user organizations", err)
	}
	defer rows.Close()

	var (
		orgs    []model.Organization
		members []model.Membership
	)
	for rows.Next() {
		var (
			o            model.Organization
			status, role string
			m            model.Membership
		)
		err := rows.Scan(&o.ID, &o.Name, &o.BusinessType, &o.Address, &o.Phone, &o.Email, &o.Currency,
			&o.BonusPercentage, &o.OrderPrefix, &status, &o.OwnerID, &o.AutoConfirmOrders, &o.CreatedAt,
			&o.UpdatedAt, &role, &m.JoinedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("scan user organization: %w", err)
		}
		o.Status = model.OrganizationStatus(status)
		m.UserID = userID
		m.OrganizationID = o.ID
		m.Role = model.Role(role)
		m.IsActive = true
		orgs = append(orgs, o)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}

	return orgs, members, nil
}
