// Package analytics строит отчёты о выручке по оплаченным заказам: помесячные и подневные графики,
// статистику за период и сравнение организаций для администратора платформы.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/money"
	"github.com/mmeshcher/pos-ledger/internal/policy"
)

var (
	// ErrInvalidInput возвращается при некорректном периоде или диапазоне дат.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden возвращается, если роли не разрешено смотреть отчёт.
	ErrForbidden = errors.New("forbidden")
)

// MaxRangeDays ограничивает длину произвольного диапазона в днях.
const MaxRangeDays = 366

// Source отдаёт агрегаты по заказам.
// orgID == nil означает все организации.
type Source interface {
	// PaidDailyTotals группирует заказы интервала [from, to) по календарным дням в loc.
	PaidDailyTotals(ctx context.Context, orgID *uuid.UUID, from, to time.Time, loc *time.Location) ([]model.DayTotal, error)
	PaidSummary(ctx context.Context, orgID *uuid.UUID, from time.Time) (model.Summary, error)
	CountCustomers(ctx context.Context, orgID *uuid.UUID) (int, error)
	RevenueByOrganization(ctx context.Context, from, to *time.Time) ([]model.OrganizationRevenue, error)
	SystemStats(ctx context.Context) (model.SystemStats, error)
}

// Scope задаёт, чьи заказы попадают в отчёт.
type Scope struct {
	OrganizationID *uuid.UUID
	Role           model.Role
}

// TenantScope строит область отчёта по организации арендатора.
func TenantScope(tc model.TenantContext) Scope {
	id := tc.OrganizationID
	return Scope{OrganizationID: &id, Role: tc.Role}
}

// PlatformScope строит область отчёта по всем организациям платформы.
func PlatformScope(id model.Identity) Scope {
	return Scope{Role: id.Role}
}

func (s Scope) authorize() error {
	action := policy.ActionViewAnalytics
	if s.OrganizationID == nil {
		action = policy.ActionManagePlatform
	}
	if !policy.CanPerform(s.Role, action) {
		return fmt.Errorf("%w: %s", ErrForbidden, action)
	}
	return nil
}

// Bucket описывает точку графика выручки.
type Bucket struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Total      decimal.Decimal `json:"total"`
	OrderCount int             `json:"orderCount"`
}

// Period задаёт период статистики.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Statistics содержит сводку за период.
type Statistics struct {
	Period          Period          `json:"period"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	OrderCount      int             `json:"orderCount"`
	CustomerCount   int             `json:"customerCount"`
	AvgOrderValue   decimal.Decimal `json:"avgOrderValue"`
	PeriodStartedAt time.Time       `json:"periodStartedAt"`
}

// Option настраивает Aggregator.
type Option func(*Aggregator)

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation задаёт часовой пояс, в котором считаются календарные дни и месяцы.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) { a.loc = loc }
}

// Aggregator строит отчёты поверх Source.
type Aggregator struct {
	src Source
	now func() time.Time
	loc *time.Location
}

// NewAggregator создаёт агрегатор. По умолчанию используется UTC и системные часы.
func NewAggregator(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{src: src, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Location возвращает часовой пояс агрегатора.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

func (a *Aggregator) today() time.Time {
	now := a.now().In(a.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
}

func (a *Aggregator) daily(ctx context.Context, s Scope, from, to time.Time) (map[string]model.DayTotal, error) {
	totals, err := a.src.PaidDailyTotals(ctx, s.OrganizationID, from, to, a.loc)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	byDay := make(map[string]model.DayTotal, len(totals))
	for _, d := range totals {
		byDay[d.Day] = d
	}
	return byDay, nil
}

// days строит непрерывный ряд дней [from, to) с нулями там, где заказов не было.
func (a *Aggregator) days(ctx context.Context, s Scope, from, to time.Time) ([]Bucket, error) {
	byDay, err := a.daily(ctx, s, from, to)
	if err != nil {
		return nil, err
	}
	var res []Bucket
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		b := Bucket{
			Key:   key,
			Label: fmt.Sprintf("%d/%d", int(d.Month()), d.Day()),
			Total: decimal.Zero,
		}
		if t, ok := byDay[key]; ok {
			b.Total = money.Round2(t.Total)
			b.OrderCount = t.OrderCount
		}
		res = append(res, b)
	}
	return res, nil
}

// Monthly возвращает 12 помесячных точек, заканчивая текущим месяцем.
func (a *Aggregator) Monthly(ctx context.Context, s Scope) ([]Bucket, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	today := a.today()
	current := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, a.loc)
	from := current.AddDate(0, -11, 0)
	to := current.AddDate(0, 1, 0)

	byDay, err := a.daily(ctx, s, from, to)
	if err != nil {
		return nil, err
	}

	res := make([]Bucket, 0, 12)
	index := make(map[string]int, 12)
	for m := from; m.Before(to); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		index[key] = len(res)
		res = append(res, Bucket{Key: key, Label: m.Format("2006/01"), Total: decimal.Zero})
	}
	for day, t := range byDay {
		if len(day) < 7 {
			continue
		}
		i, ok := index[day[:7]]
		if !ok {
			continue
		}
		res[i].Total = res[i].Total.Add(t.Total)
		res[i].OrderCount += t.OrderCount
	}
	for i := range res {
		res[i].Total = money.Round2(res[i].Total)
	}
	return res, nil
}

// LastSevenDays возвращает 7 подневных точек, заканчивая сегодняшним днём.
func (a *Aggregator) LastSevenDays(ctx context.Context, s Scope) ([]Bucket, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	today := a.today()
	return a.days(ctx, s, today.AddDate(0, 0, -6), today.AddDate(0, 0, 1))
}

// ParseRange разбирает границы диапазона YYYY-MM-DD (обе включительно) в часовом поясе агрегатора.
func (a *Aggregator) ParseRange(from, to string) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from and to are required", ErrInvalidInput)
	}
	start, err := time.ParseInLocation(time.DateOnly, from, a.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %q must be YYYY-MM-DD", ErrInvalidInput, from)
	}
	end, err := time.ParseInLocation(time.DateOnly, to, a.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to %q must be YYYY-MM-DD", ErrInvalidInput, to)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", ErrInvalidInput)
	}
	end = end.AddDate(0, 0, 1)
	if end.After(start.AddDate(0, 0, MaxRangeDays)) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range exceeds %d days", ErrInvalidInput, MaxRangeDays)
	}
	return start, end, nil
}

// Range возвращает подневные точки для диапазона from..to включительно.
func (a *Aggregator) Range(ctx context.Context, s Scope, from, to string) ([]Bucket, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	start, end, err := a.ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	return a.days(ctx, s, start, end)
}

func (a *Aggregator) periodStart(p Period) (time.Time, error) {
	now := a.now().In(a.loc)
	switch p {
	case PeriodToday:
		return a.today(), nil
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth:
		return now.AddDate(0, -1, 0), nil
	case PeriodYear:
		return now.AddDate(-1, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown period %q", ErrInvalidInput, p)
}

// Statistics возвращает выручку, количество заказов, клиентов и средний чек за период.
func (a *Aggregator) Statistics(ctx context.Context, s Scope, p Period) (*Statistics, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	if p == "" {
		p = PeriodToday
	}
	from, err := a.periodStart(p)
	if err != nil {
		return nil, err
	}

	sum, err := a.src.PaidSummary(ctx, s.OrganizationID, from)
	if err != nil {
		return nil, fmt.Errorf("paid summary: %w", err)
	}
	customers, err := a.src.CountCustomers(ctx, s.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}

	st := &Statistics{
		Period:          p,
		TotalRevenue:    money.Round2(sum.Revenue),
		OrderCount:      sum.OrderCount,
		CustomerCount:   customers,
		AvgOrderValue:   decimal.Zero,
		PeriodStartedAt: from,
	}
	if sum.OrderCount > 0 {
		st.AvgOrderValue = money.Round2(sum.Revenue.Div(decimal.NewFromInt(int64(sum.OrderCount))))
	}
	return st, nil
}

// OrganizationStatistics возвращает сводку по одной организации для администратора платформы.
func (a *Aggregator) OrganizationStatistics(ctx context.Context, s Scope, orgID uuid.UUID, p Period) (*Statistics, error) {
	s.OrganizationID = nil
	if err := s.authorize(); err != nil {
		return nil, err
	}
	return a.Statistics(ctx, Scope{OrganizationID: &orgID, Role: s.Role}, p)
}

// RevenueByOrganization сравнивает выручку организаций. Пустые границы снимают ограничение.
func (a *Aggregator) RevenueByOrganization(ctx context.Context, s Scope, from, to string) ([]model.OrganizationRevenue, error) {
	s.OrganizationID = nil
	if err := s.authorize(); err != nil {
		return nil, err
	}

	var start, end *time.Time
	if from != "" || to != "" {
		if from == "" || to == "" {
			return nil, fmt.Errorf("%w: both from and to are required", ErrInvalidInput)
		}
		f, t, err := a.ParseRange(from, to)
		if err != nil {
			return nil, err
		}
		start, end = &f, &t
	}

	res, err := a.src.RevenueByOrganization(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("revenue by organization: %w", err)
	}
	for i := range res {
		res[i].TotalRevenue = money.Round2(res[i].TotalRevenue)
	}
	return res, nil
}

// SystemStats возвращает сводные показатели платформы.
func (a *Aggregator) SystemStats(ctx context.Context, s Scope) (*model.SystemStats, error) {
	s.OrganizationID = nil
	if err := s.authorize(); err != nil {
		return nil, err
	}
	st, err := a.src.SystemStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("system stats: %w", err)
	}
	st.Revenue = money.Round2(st.Revenue)
	return &st, nil
}
