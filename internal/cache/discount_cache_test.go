package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

type countingCatalog struct {
	autoApplyCalls int
	lookupCalls    int
	fail           error
}

func (c *countingCatalog) ListAutoApply(ctx context.Context) ([]models.DiscountCode, error) {
	c.autoApplyCalls++
	if c.fail != nil {
		return nil, c.fail
	}
	return []models.DiscountCode{{ID: "d1", Code: "AUTO", AutoApply: true}}, nil
}

func (c *countingCatalog) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	c.lookupCalls++
	if c.fail != nil {
		return nil, c.fail
	}
	return &models.DiscountCode{ID: "d2", Code: models.CanonicalCode(code)}, nil
}

func TestDiscountCacheMemoisesLookups(t *testing.T) {
	next := &countingCatalog{}
	c := NewDiscountCache(next, time.Minute, time.Minute, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := c.ListAutoApply(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	assert.Equal(t, 1, next.autoApplyCalls)

	d, err := c.GetByCode(ctx, "save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", d.Code)

	_, err = c.GetByCode(ctx, " Save 10 ")
	require.NoError(t, err)
	assert.Equal(t, 1, next.lookupCalls, "codes are cached by canonical form")

	c.Invalidate()
	_, err = c.GetByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 2, next.lookupCalls)
}

func TestDiscountCacheDoesNotCacheErrors(t *testing.T) {
	next := &countingCatalog{fail: ierr.NewError("down").Mark(ierr.ErrTransient)}
	c := NewDiscountCache(next, time.Minute, time.Minute, time.Minute)
	ctx := context.Background()

	_, err := c.ListAutoApply(ctx)
	assert.True(t, ierr.IsTransient(err))

	next.fail = nil
	list, err := c.ListAutoApply(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 2, next.autoApplyCalls)
}

func TestDiscountCacheReturnsCopies(t *testing.T) {
	c := NewDiscountCache(&countingCatalog{}, time.Minute, time.Minute, time.Minute)
	ctx := context.Background()

	list, err := c.ListAutoApply(ctx)
	require.NoError(t, err)
	list[0].Code = "MUTATED"

	again, err := c.ListAutoApply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AUTO", again[0].Code)
}
