package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayTotal содержит выручку и количество оплаченных заказов за календарный день (ключ YYYY-MM-DD).
type DayTotal struct {
	Day        string
	Total      decimal.Decimal
	OrderCount int
}

// Summary содержит суммарную выручку и количество оплаченных заказов за период.
type Summary struct {
	Revenue    decimal.Decimal
	OrderCount int
}

// OrganizationRevenue содержит выручку одной организации для сравнения на уровне платформы.
type OrganizationRevenue struct {
	OrganizationID uuid.UUID       `json:"organizationId"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	OrderCount     int             `json:"orderCount"`
}

// SystemStats содержит сводные показатели платформы.
type SystemStats struct {
	Organizations       int             `json:"organizations"`
	ActiveOrganizations int             `json:"activeOrganizations"`
	Users               int             `json:"users"`
	Customers           int             `json:"customers"`
	Orders              int             `json:"orders"`
	Revenue             decimal.Decimal `json:"revenue"`
}
