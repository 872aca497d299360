// Package policy содержит единую таблицу прав: какая роль какие действия может выполнять.
package policy

import "github.com/mmeshcher/pos-ledger/internal/model"

// Action обозначает действие, требующее проверки прав.
type Action string

const (
	ActionViewCustomers      Action = "customers:view"
	ActionManageCustomers    Action = "customers:manage"
	ActionCreateOrder        Action = "orders:create"
	ActionViewOrders         Action = "orders:view"
	ActionConfirmOrder       Action = "orders:confirm"
	ActionDeleteOrder        Action = "orders:delete"
	ActionCancelOrder        Action = "orders:cancel"
	ActionViewAnalytics      Action = "analytics:view"
	ActionViewOrganization   Action = "organization:view"
	ActionUpdateSettings     Action = "organization:settings"
	ActionAddMember          Action = "organization:add-member"
	ActionRemoveMember       Action = "organization:remove-member"
	ActionCreateOrganization Action = "organization:create"
	ActionManagePlatform     Action = "platform:manage"
)

var staff = []model.Role{model.RoleOwner, model.RoleManager, model.RoleEmployee}

var rules = map[Action][]model.Role{
	ActionViewCustomers:      staff,
	ActionManageCustomers:    staff,
	ActionCreateOrder:        staff,
	ActionViewOrders:         staff,
	ActionConfirmOrder:       staff,
	ActionDeleteOrder:        {model.RoleOwner, model.RoleManager},
	ActionCancelOrder:        {model.RoleOwner, model.RoleManager},
	ActionViewAnalytics:      staff,
	ActionViewOrganization:   staff,
	ActionUpdateSettings:     {model.RoleOwner, model.RoleManager},
	ActionAddMember:          {model.RoleOwner, model.RoleManager},
	ActionRemoveMember:       {model.RoleOwner},
	ActionCreateOrganization: {model.RoleOwner, model.RoleManager},
}

// CanPerform сообщает, разрешено ли роли выполнять действие.
// Администратор платформы может выполнять любое действие.
func CanPerform(role model.Role, action Action) bool {
	if role == model.RoleSuperAdmin {
		return true
	}
	for _, r := range rules[action] {
		if r == role {
			return true
		}
	}
	return false
}
