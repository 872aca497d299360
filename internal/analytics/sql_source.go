package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/repository"
)

// SQLSource читает агрегаты из PostgreSQL через database/sql.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource создаёт источник поверх открытого соединения.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// Close закрывает соединение.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repository.ErrUnavailable, err)
}

// paidFilter собирает условие WHERE по оплаченным заказам с позиционными параметрами.
type paidFilter struct {
	conds []string
	args  []any
}

func newPaidFilter(args ...any) *paidFilter {
	return &paidFilter{conds: []string{"status = 'PAID'"}, args: args}
}

func (f *paidFilter) add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, fmt.Sprintf(cond, len(f.args)))
}

func (f *paidFilter) where() string {
	return strings.Join(f.conds, " AND ")
}

func (s *SQLSource) PaidDailyTotals(ctx context.Context, orgID *uuid.UUID, from, to time.Time, loc *time.Location) ([]model.DayTotal, error) {
	f := newPaidFilter(loc.String())
	f.add("created_at >= $%d", from)
	f.add("created_at < $%d", to)
	if orgID != nil {
		f.add("organization_id = $%d", *orgID)
	}

	query := `SELECT to_char(created_at AT TIME ZONE $1, 'YYYY-MM-DD') AS day,
		COALESCE(SUM(total_price), 0), COUNT(*)
		FROM orders WHERE ` + f.where() + `
		GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, f.args...)
	if err != nil {
		return nil, unavailable("query daily totals", err)
	}
	defer rows.Close()

	var res []model.DayTotal
	for rows.Next() {
		var d model.DayTotal
		if err := rows.Scan(&d.Day, &d.Total, &d.OrderCount); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate daily totals", err)
	}
	return res, nil
}

func (s *SQLSource) PaidSummary(ctx context.Context, orgID *uuid.UUID, from time.Time) (model.Summary, error) {
	f := newPaidFilter()
	f.add("created_at >= $%d", from)
	if orgID != nil {
		f.add("organization_id = $%d", *orgID)
	}

	var sum model.Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_price), 0), COUNT(*) FROM orders WHERE `+f.where(),
		f.args...,
	).Scan(&sum.Revenue, &sum.OrderCount)
	if err != nil {
		return model.Summary{}, unavailable("query paid summary", err)
	}
	return sum, nil
}

func (s *SQLSource) CountCustomers(ctx context.Context, orgID *uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM customers`
	var args []any
	if orgID != nil {
		query += ` WHERE organization_id = $1`
		args = append(args, *orgID)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, unavailable("count customers", err)
	}
	return n, nil
}

func (s *SQLSource) RevenueByOrganization(ctx context.Context, from, to *time.Time) ([]model.OrganizationRevenue, error) {
	join := []string{"r.organization_id = o.id", "r.status = 'PAID'"}
	var args []any
	if from != nil {
		args = append(args, *from)
		join = append(join, fmt.Sprintf("r.created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		join = append(join, fmt.Sprintf("r.created_at < $%d", len(args)))
	}

	query := `SELECT o.id, o.name, o.status, COALESCE(SUM(r.total_price), 0), COUNT(r.id)
		FROM organizations o
		JOIN orders r ON ` + strings.Join(join, " AND ") + `
		GROUP BY o.id, o.name, o.status
		ORDER BY 4 DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query revenue by organization", err)
	}
	defer rows.Close()

	var res []model.OrganizationRevenue
	for rows.Next() {
		var rev model.OrganizationRevenue
		if err := rows.Scan(&rev.OrganizationID, &rev.Name, &rev.Status, &rev.TotalRevenue, &rev.OrderCount); err != nil {
			return nil, fmt.Errorf("scan organization revenue: %w", err)
		}
		res = append(res, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate revenue by organization", err)
	}
	return res, nil
}

func (s *SQLSource) SystemStats(ctx context.Context) (model.SystemStats, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM organizations),
		(SELECT COUNT(*) FROM organizations WHERE status = 'active'),
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM orders WHERE status = 'PAID'),
		(SELECT COALESCE(SUM(total_price), 0) FROM orders WHERE status = 'PAID')`

	var st model.SystemStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&st.Organizations, &st.ActiveOrganizations, &st.Users, &st.Customers, &st.Orders, &st.Revenue,
	)
	if err != nil {
		return model.SystemStats{}, unavailable("query system stats", err)
	}
	return st, nil
}
