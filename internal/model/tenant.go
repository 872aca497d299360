package model

import "github.com/google/uuid"

// Role описывает роль пользователя на платформе или внутри организации.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOwner      Role = "owner"
	RoleManager    Role = "manager"
	RoleEmployee   Role = "employee"
)

// Valid сообщает, является ли роль допустимым значением.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOwner, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// Identity описывает результат проверки токена: кто выполняет запрос.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// TenantContext явно передаётся во все операции реестра и движка заказов.
// Содержит организацию, от имени которой выполняется запрос, и роль пользователя в ней.
type TenantContext struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Role           Role
}
