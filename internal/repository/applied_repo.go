package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/checkout"
	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
)

// AppliedRepo persists applied discount snapshots in Redis, one key per
// checkout session.
type AppliedRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewAppliedRepo(client *redis.Client, keyPrefix string, ttl time.Duration) *AppliedRepo {
	return &AppliedRepo{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *AppliedRepo) key(sessionID string) string {
	return r.keyPrefix + "applied:" + sessionID
}

func (r *AppliedRepo) Save(ctx context.Context, sessionID string, a *checkout.Applied) error {
	data, err := a.Marshal()
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err(); err != nil {
		return ierr.WithError(err).
			WithMessage("save applied discount").
			Mark(ierr.ErrTransient)
	}
	return nil
}

func (r *AppliedRepo) Load(ctx context.Context, sessionID string) (*checkout.Applied, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("load applied discount").
			Mark(ierr.ErrTransient)
	}
	return checkout.UnmarshalApplied(data)
}

func (r *AppliedRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return ierr.WithError(err).
			WithMessage("delete applied discount").
			Mark(ierr.ErrTransient)
	}
	return nil
}
