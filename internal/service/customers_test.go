package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/repository"
)

func TestRegisterCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := "  Bat  "

	c, err := f.svc.Customers.Register(ctx, f.owner, "9911-22 33", CustomerFields{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "99112233", c.Phone)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Bat", *c.Name)
	assert.True(t, c.TotalBonus.IsZero())
	assert.True(t, c.IsActive)
	require.NotNil(t, c.CreatedBy)
	assert.Equal(t, f.owner.UserID, *c.CreatedBy)

	found, err := f.svc.Customers.FindByPhone(ctx, f.owner, "99 11 22 33")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
}

func TestRegisterCustomer_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, phone := range []string{"", "  ", "12ab5678", "123"} {
		_, err := f.svc.Customers.Register(ctx, f.owner, phone, CustomerFields{})
		assert.ErrorIs(t, err, ErrInvalidInput, "phone %q", phone)
	}
}

func TestRegisterCustomer_PhoneUniquePerTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.tenant(t, OrganizationInput{})

	_, err := f.svc.Customers.Register(ctx, f.owner, "99112233", CustomerFields{})
	require.NoError(t, err)

	_, err = f.svc.Customers.Register(ctx, f.owner, "99112233", CustomerFields{})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = f.svc.Customers.Register(ctx, other, "99112233", CustomerFields{})
	assert.NoError(t, err)
}

func TestCustomer_CrossTenantIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.tenant(t, OrganizationInput{})
	c := f.customer(t, f.owner, "99112233", 10)

	_, err := f.svc.Customers.Get(ctx, other, c.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.Customers.FindByPhone(ctx, other, "99112233")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.Customers.Update(ctx, other, c.ID, CustomerPatch{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.Customers.AdjustBonus(ctx, other, c.ID, dec("5"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, _, err = f.svc.Customers.Orders(ctx, other, c.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	requireDecimal(t, "10", f.balance(t, f.owner, c.ID))
}

func TestUpdateCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, f.owner, "99112233", 40)
	f.customer(t, f.owner, "88112233", 0)

	email := "bat@example.com"
	inactive := false
	updated, err := f.svc.Customers.Update(ctx, f.owner, c.ID, CustomerPatch{
		CustomerFields: CustomerFields{Email: &email},
		IsActive:       &inactive,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Email)
	assert.Equal(t, email, *updated.Email)
	assert.False(t, updated.IsActive)
	requireDecimal(t, "40", updated.TotalBonus)

	taken := "88112233"
	_, err = f.svc.Customers.Update(ctx, f.owner, c.ID, CustomerPatch{Phone: &taken})
	assert.ErrorIs(t, err, repository.ErrConflict)

	fresh := "77112233"
	updated, err = f.svc.Customers.Update(ctx, f.owner, c.ID, CustomerPatch{Phone: &fresh})
	require.NoError(t, err)
	assert.Equal(t, fresh, updated.Phone)
}

func TestAdjustBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, f.owner, "99112233", 10)

	updated, err := f.svc.Customers.AdjustBonus(ctx, f.owner, c.ID, dec("-2.345"))
	require.NoError(t, err)
	requireDecimal(t, "7.66", updated.TotalBonus)

	_, err = f.svc.Customers.AdjustBonus(ctx, f.owner, c.ID, dec("-8"))
	assert.ErrorIs(t, err, ErrInsufficientBonus)
	requireDecimal(t, "7.66", f.balance(t, f.owner, c.ID))
}

func TestListCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, phone := range []string{"99110001", "99110002", "88110003"} {
		name := []string{"Bat", "Bold", "Saraa"}[i]
		_, err := f.svc.Customers.Register(ctx, f.owner, phone, CustomerFields{Name: &name})
		require.NoError(t, err)
	}
	f.customer(t, f.tenant(t, OrganizationInput{}), "99110009", 0)

	list, page, err := f.svc.Customers.List(ctx, f.owner, repository.CustomerFilter{Phone: "9911"}, model.Page{Number: 1, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, page.Total)

	list, _, err = f.svc.Customers.List(ctx, f.owner, repository.CustomerFilter{Name: "b"}, model.Page{Number: 1, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, page, err = f.svc.Customers.List(ctx, f.owner, repository.CustomerFilter{}, model.Page{Number: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, page.TotalPages)
}

func TestCustomerOrders_PaidOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, f.owner, "99112233", 0)

	paid, _, err := f.svc.Orders.Create(ctx, f.owner, CreateOrderInput{CustomerID: &c.ID, Items: items("100")})
	require.NoError(t, err)
	cancelled, _, err := f.svc.Orders.Create(ctx, f.owner, CreateOrderInput{CustomerID: &c.ID, Items: items("100")})
	require.NoError(t, err)
	_, err = f.svc.Orders.Cancel(ctx, f.owner, cancelled.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Orders.Create(ctx, f.owner, CreateOrderInput{Items: items("100")})
	require.NoError(t, err)

	cust, orders, err := f.svc.Customers.Orders(ctx, f.owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, cust.ID)
	require.Len(t, orders, 1)
	assert.Equal(t, paid.ID, orders[0].ID)

	_, _, err = f.svc.Customers.Orders(ctx, f.owner, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
