package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

func TestCanPerform(t *testing.T) {
	tests := []struct {
		name   string
		role   model.Role
		action Action
		want   bool
	}{
		{name: "employee creates order", role: model.RoleEmployee, action: ActionCreateOrder, want: true},
		{name: "employee cannot delete order", role: model.RoleEmployee, action: ActionDeleteOrder, want: false},
		{name: "manager deletes order", role: model.RoleManager, action: ActionDeleteOrder, want: true},
		{name: "owner deletes order", role: model.RoleOwner, action: ActionDeleteOrder, want: true},
		{name: "manager cannot remove member", role: model.RoleManager, action: ActionRemoveMember, want: false},
		{name: "owner cannot manage platform", role: model.RoleOwner, action: ActionManagePlatform, want: false},
		{name: "super admin manages platform", role: model.RoleSuperAdmin, action: ActionManagePlatform, want: true},
		{name: "super admin deletes order", role: model.RoleSuperAdmin, action: ActionDeleteOrder, want: true},
		{name: "unknown role", role: model.Role("guest"), action: ActionViewOrders, want: false},
		{name: "unknown action", role: model.RoleOwner, action: Action("nope"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPerform(tt.role, tt.action))
		})
	}
}
