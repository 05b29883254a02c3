package db

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/config"
	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
)

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ierr.WithError(err).
			WithMessage("redis ping failed").
			WithHint("The applied discount store is unreachable").
			Mark(ierr.ErrTransient)
	}

	return client, nil
}
