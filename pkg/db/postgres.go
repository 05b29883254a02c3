package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/config"
	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
)

func NewPostgresConnection(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", PostgresDSN(cfg))
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("open db").Mark(ierr.ErrDatabase)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, ierr.WithError(err).WithMessage("db ping failed").Mark(ierr.ErrDatabase)
	}

	return db, nil
}
