package analytics

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pos-ledger/internal/repository"
)

func setupMockSource(t *testing.T) (*SQLSource, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLSource(db), mock
}

func TestSQLSource_PaidDailyTotals(t *testing.T) {
	src, mock := setupMockSource(t)
	orgID := uuid.New()
	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	rows := sqlmock.NewRows([]string{"day", "sum", "count"}).
		AddRow("2026-03-05", "575.50", int64(2)).
		AddRow("2026-03-07", "10", int64(1))
	mock.ExpectQuery(`SELECT to_char\(created_at AT TIME ZONE \$1, 'YYYY-MM-DD'\)`).
		WithArgs("UTC", from, to, orgID.String()).
		WillReturnRows(rows)

	got, err := src.PaidDailyTotals(context.Background(), &orgID, from, to, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-05", got[0].Day)
	assert.True(t, got[0].Total.Equal(dec("575.5")))
	assert.Equal(t, 2, got[0].OrderCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_PaidDailyTotals_AllOrganizations(t *testing.T) {
	src, mock := setupMockSource(t)
	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(`FROM orders WHERE status = 'PAID' AND created_at >= \$2 AND created_at < \$3\s+GROUP BY day`).
		WithArgs("UTC", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"day", "sum", "count"}))

	got, err := src.PaidDailyTotals(context.Background(), nil, from, to, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_PaidSummary(t *testing.T) {
	src, mock := setupMockSource(t)
	orgID := uuid.New()
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(total_price\), 0\), COUNT\(\*\) FROM orders`).
		WithArgs(from, orgID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow("300.00", int64(3)))

	sum, err := src.PaidSummary(context.Background(), &orgID, from)
	require.NoError(t, err)
	assert.True(t, sum.Revenue.Equal(dec("300")))
	assert.Equal(t, 3, sum.OrderCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_CountCustomers(t *testing.T) {
	src, mock := setupMockSource(t)
	orgID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customers WHERE organization_id = \$1`).
		WithArgs(orgID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customers$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	n, err := src.CountCustomers(context.Background(), &orgID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = src.CountCustomers(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_RevenueByOrganization(t *testing.T) {
	src, mock := setupMockSource(t)
	orgID := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(`JOIN orders r ON r.organization_id = o.id AND r.status = 'PAID' AND r.created_at >= \$1 AND r.created_at < \$2`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "sum", "count"}).
			AddRow(orgID.String(), "Bubble", "active", "1200.00", int64(4)))

	got, err := src.RevenueByOrganization(context.Background(), &from, &to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, orgID, got[0].OrganizationID)
	assert.Equal(t, "Bubble", got[0].Name)
	assert.True(t, got[0].TotalRevenue.Equal(dec("1200")))
	assert.Equal(t, 4, got[0].OrderCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_SystemStats(t *testing.T) {
	src, mock := setupMockSource(t)

	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM organizations\)`).
		WillReturnRows(sqlmock.NewRows([]string{"orgs", "active", "users", "customers", "orders", "revenue"}).
			AddRow(int64(3), int64(2), int64(9), int64(40), int64(120), "5400.25"))

	st, err := src.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Organizations)
	assert.Equal(t, 2, st.ActiveOrganizations)
	assert.Equal(t, 9, st.Users)
	assert.Equal(t, 40, st.Customers)
	assert.Equal(t, 120, st.Orders)
	assert.True(t, st.Revenue.Equal(dec("5400.25")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_QueryErrorIsUnavailable(t *testing.T) {
	src, mock := setupMockSource(t)

	mock.ExpectQuery(`SELECT`).WillReturnError(sql.ErrConnDone)

	_, err := src.PaidSummary(context.Background(), nil, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrUnavailable))
	assert.True(t, errors.Is(err, sql.ErrConnDone))

	require.NoError(t, mock.ExpectationsWereMet())
}
