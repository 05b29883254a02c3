package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

const autoApplyKey = "auto_apply"

// Catalog is the lookup side of a discount backend.
type Catalog interface {
	ListAutoApply(ctx context.Context) ([]models.DiscountCode, error)
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
}

// DiscountCache memoises catalog lookups for a short TTL. Errors are never
// cached, so a NotFound or a transient failure is retried on the next call.
type DiscountCache struct {
	next         Catalog
	store        *goCache.Cache
	autoApplyTTL time.Duration
	lookupTTL    time.Duration
}

func NewDiscountCache(next Catalog, autoApplyTTL, lookupTTL, cleanupInterval time.Duration) *DiscountCache {
	return &DiscountCache{
		next:         next,
		store:        goCache.New(lookupTTL, cleanupInterval),
		autoApplyTTL: autoApplyTTL,
		lookupTTL:    lookupTTL,
	}
}

func (c *DiscountCache) ListAutoApply(ctx context.Context) ([]models.DiscountCode, error) {
	if val, ok := c.store.Get(autoApplyKey); ok {
		return append([]models.DiscountCode(nil), val.([]models.DiscountCode)...), nil
	}

	list, err := c.next.ListAutoApply(ctx)
	if err != nil {
		return nil, err
	}
	c.store.Set(autoApplyKey, append([]models.DiscountCode(nil), list...), c.autoApplyTTL)
	return list, nil
}

func (c *DiscountCache) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	key := "code:" + models.CanonicalCode(code)
	if val, ok := c.store.Get(key); ok {
		d := val.(models.DiscountCode)
		return &d, nil
	}

	d, err := c.next.GetByCode(ctx, code)
	if err != nil || d == nil {
		return d, err
	}
	c.store.Set(key, *d, c.lookupTTL)
	return d, nil
}

// Invalidate drops every cached entry, e.g. after an admin edit.
func (c *DiscountCache) Invalidate() {
	c.store.Flush()
}
