package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *OrganizationCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewOrganizationCache(client, time.Minute)
}

func TestOrganizationCache_SetGet(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	org := &model.Organization{
		ID:              uuid.New(),
		Name:            "Bubble Laundry",
		BonusPercentage: decimal.RequireFromString("0.07"),
		OrderPrefix:     "BZ",
		Status:          model.OrganizationActive,
	}
	require.NoError(t, c.Set(ctx, org))

	got, err := c.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.Name, got.Name)
	assert.Equal(t, org.OrderPrefix, got.OrderPrefix)
	assert.True(t, got.BonusPercentage.Equal(org.BonusPercentage))
}

func TestOrganizationCache_Miss(t *testing.T) {
	_, c := setupCache(t)

	_, err := c.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrMiss)
}

func TestOrganizationCache_InvalidateAndExpire(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	org := &model.Organization{ID: uuid.New(), Name: "A"}
	require.NoError(t, c.Set(ctx, org))
	require.NoError(t, c.Invalidate(ctx, org.ID))
	_, err := c.Get(ctx, org.ID)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, org))
	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, org.ID)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestOrganizationCache_Unavailable(t *testing.T) {
	mr, c := setupCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
