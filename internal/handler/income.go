package handler

import (
	"fmt"
	"net/http"

	"github.com/mmeshcher/pos-ledger/internal/analytics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func tenantScope(r *http.Request) analytics.Scope {
	return analytics.TenantScope(tenant(r))
}

func platformScope(r *http.Request) analytics.Scope {
	return analytics.PlatformScope(identity(r))
}

func (h *Handler) writeChart(w http.ResponseWriter, r *http.Request, buckets []analytics.Bucket, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": buckets})
}

// MonthlyIncome возвращает выручку за последние 12 месяцев.
func (h *Handler) MonthlyIncome(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.svc.Analytics.Monthly(r.Context(), tenantScope(r))
	h.writeChart(w, r, buckets, err)
}

// LastSevenDaysIncome возвращает выручку за последние 7 дней.
func (h *Handler) LastSevenDaysIncome(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.svc.Analytics.LastSevenDays(r.Context(), tenantScope(r))
	h.writeChart(w, r, buckets, err)
}

// RangeIncome возвращает подневную выручку за диапазон from..to.
func (h *Handler) RangeIncome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	buckets, err := h.svc.Analytics.Range(r.Context(), tenantScope(r), q.Get("from"), q.Get("to"))
	h.writeChart(w, r, buckets, err)
}

// ExportIncome отдаёт подневную выручку диапазона файлом xlsx.
func (h *Handler) ExportIncome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")

	data, err := h.svc.Analytics.ExportRange(r.Context(), tenantScope(r), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="income_%s_%s.xlsx"`, from, to))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Statistics возвращает сводку за период today, week, month или year.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	period := analytics.Period(r.URL.Query().Get("period"))

	st, err := h.svc.Analytics.Statistics(r.Context(), tenantScope(r), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SystemStats возвращает сводные показатели платформы.
func (h *Handler) SystemStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Analytics.SystemStats(r.Context(), platformScope(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// OrganizationsRevenue сравнивает выручку организаций платформы.
func (h *Handler) OrganizationsRevenue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.svc.Analytics.RevenueByOrganization(r.Context(), platformScope(r), q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": rows})
}

// OrganizationStatistics возвращает сводку по выбранной организации для администратора платформы.
func (h *Handler) OrganizationStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.organizationID(w, r)
	if !ok {
		return
	}

	period := analytics.Period(r.URL.Query().Get("period"))
	st, err := h.svc.Analytics.OrganizationStatistics(r.Context(), platformScope(r), id, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	org, err := h.svc.Tenants.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organization": org, "stats": st})
}
