package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.DefaultOrganizationID, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash, role, is_active) VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.IsActive,
	).Scan(&u.CreatedAt)
	if err != nil {
		return classify("create user", err)
	}
	return nil
}

// GetUserByUsername возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, default_organization_id, is_active, created_at
		 FROM users WHERE username = $1`,
		username,
	))
	if err != nil {
		return nil, classify("get user", err)
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, default_organization_id, is_active, created_at
		 FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, classify("get user", err)
	}
	return u, nil
}

// GetMembership возвращает членство пользователя в организации.
func (r *PostgresRepository) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error) {
	var (
		m    model.Membership
		role string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, organization_id, role, is_active, joined_at
		 FROM memberships WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID,
	).Scan(&m.UserID, &m.OrganizationID, &role, &m.IsActive, &m.JoinedAt)
	if err != nil {
		return nil, classify("get membership", err)
	}
	m.Role = model.Role(role)
	return &m, nil
}

// ListMembers возвращает участников организации в порядке вступления.
func (r *PostgresRepository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]model.Employee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.user_id, u.username, m.role, m.is_active, m.joined_at
		 FROM memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.organization_id = $1
		 ORDER BY m.joined_at, u.username`,
		orgID,
	)
	if err != nil {
		return nil, classify("list members", err)
	}
	defer rows.Close()

	var res []model.Employee
	for rows.Next() {
		var (
			e    model.Employee
			role string
		)
		if err := rows.Scan(&e.UserID, &e.Username, &role, &e.IsActive, &e.JoinedAt); err != nil {
			return nil, classify("scan member", err)
		}
		e.Role = model.Role(role)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list members", err)
	}
	return res, nil
}

// CountMemberships возвращает количество активных членств пользователя с указанными ролями.
// Без ролей считаются все активные членства.
func (r *PostgresRepository) CountMemberships(ctx context.Context, userID uuid.UUID, roles ...model.Role) (int, error) {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}

	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM memberships
		 WHERE user_id = $1 AND is_active AND (cardinality($2::text[]) = 0 OR role = ANY($2))`,
		userID, names,
	).Scan(&n)
	if err != nil {
		return 0, classify("count memberships", err)
	}
	return n, nil
}

// AddMembership добавляет пользователя в организацию. Повторное добавление возвращает ErrConflict.
func (r *PostgresRepository) AddMembership(ctx context.Context, m *model.Membership) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO memberships (user_id, organization_id, role) VALUES ($1, $2, $3)
		 RETURNING is_active, joined_at`,
		m.UserID, m.OrganizationID, string(m.Role),
	).Scan(&m.IsActive, &m.JoinedAt)
	if err != nil {
		return classify("insert membership", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET default_organization_id = $2 WHERE id = $1 AND default_organization_id IS NULL`,
		m.UserID, m.OrganizationID,
	)
	if err != nil {
		return classify("set default organization", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// RemoveMembership удаляет пользователя из организации и сбрасывает организацию по умолчанию,
// если она указывала на эту организацию.
func (r *PostgresRepository) RemoveMembership(ctx context.Context, userID, orgID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM memberships WHERE user_id = $1 AND organization_id = $2`, userID, orgID)
	if err != nil {
		return classify("delete membership", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete membership: %w", ErrNotFound)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET default_organization_id = (
			SELECT organization_id FROM memberships WHERE user_id = $1 ORDER BY joined_at LIMIT 1)
		 WHERE id = $1 AND default_organization_id = $2`,
		userID, orgID,
	)
	if err != nil {
		return classify("reset default organization", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// SetDefaultOrganization переключает организацию по умолчанию для пользователя.
func (r *PostgresRepository) SetDefaultOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET default_organization_id = $2 WHERE id = $1`, userID, orgID)
	if err != nil {
		return classify("set default organization", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set default organization: %w", ErrNotFound)
	}
	return nil
}
