package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

func (r *MemoryRepository) paidOrders(orgID *uuid.UUID, from, to *time.Time, fn func(o model.Order)) {
	for _, o := range r.orders {
		if o.Status != model.OrderStatusPaid {
			continue
		}
		if orgID != nil && o.OrganizationID != *orgID {
			continue
		}
		if from != nil && o.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && !o.CreatedAt.Before(*to) {
			continue
		}
		fn(o)
	}
}

// PaidDailyTotals группирует оплаченные заказы интервала [from, to) по календарным дням в loc.
func (r *MemoryRepository) PaidDailyTotals(_ context.Context, orgID *uuid.UUID, from, to time.Time, loc *time.Location) ([]model.DayTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDay := make(map[string]*model.DayTotal)
	r.paidOrders(orgID, &from, &to, func(o model.Order) {
		key := o.CreatedAt.In(loc).Format(time.DateOnly)
		d, ok := byDay[key]
		if !ok {
			d = &model.DayTotal{Day: key}
			byDay[key] = d
		}
		d.Total = d.Total.Add(o.TotalPrice)
		d.OrderCount++
	})

	res := make([]model.DayTotal, 0, len(byDay))
	for _, d := range byDay {
		res = append(res, *d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Day < res[j].Day })
	return res, nil
}

// PaidSummary возвращает выручку и количество оплаченных заказов начиная с from.
func (r *MemoryRepository) PaidSummary(_ context.Context, orgID *uuid.UUID, from time.Time) (model.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s model.Summary
	r.paidOrders(orgID, &from, nil, func(o model.Order) {
		s.Revenue = s.Revenue.Add(o.TotalPrice)
		s.OrderCount++
	})
	return s, nil
}

// CountCustomers возвращает количество клиентов организации или всей платформы при orgID == nil.
func (r *MemoryRepository) CountCustomers(_ context.Context, orgID *uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.customers {
		if orgID == nil || c.OrganizationID == *orgID {
			n++
		}
	}
	return n, nil
}

// RevenueByOrganization сравнивает выручку организаций за необязательный интервал [from, to).
func (r *MemoryRepository) RevenueByOrganization(_ context.Context, from, to *time.Time) ([]model.OrganizationRevenue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byOrg := make(map[uuid.UUID]*model.OrganizationRevenue)
	r.paidOrders(nil, from, to, func(o model.Order) {
		rev, ok := byOrg[o.OrganizationID]
		if !ok {
			org := r.organizations[o.OrganizationID]
			rev = &model.OrganizationRevenue{
				OrganizationID: o.OrganizationID,
				Name:           org.Name,
				Status:         string(org.Status),
			}
			byOrg[o.OrganizationID] = rev
		}
		rev.TotalRevenue = rev.TotalRevenue.Add(o.TotalPrice)
		rev.OrderCount++
	})

	res := make([]model.OrganizationRevenue, 0, len(byOrg))
	for _, rev := range byOrg {
		res = append(res, *rev)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TotalRevenue.GreaterThan(res[j].TotalRevenue) })
	return res, nil
}

// SystemStats возвращает сводные показатели платформы.
func (r *MemoryRepository) SystemStats(_ context.Context) (model.SystemStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := model.SystemStats{
		Organizations: len(r.organizations),
		Users:         len(r.users),
		Customers:     len(r.customers),
		Revenue:       decimal.Zero,
	}
	for _, o := range r.organizations {
		if o.Status == model.OrganizationActive {
			s.ActiveOrganizations++
		}
	}
	r.paidOrders(nil, nil, nil, func(o model.Order) {
		s.Orders++
		s.Revenue = s.Revenue.Add(o.TotalPrice)
	})
	return s, nil
}
