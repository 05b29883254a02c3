package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/api"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/backend"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/cache"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/checkout"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/config"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/repository"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/service"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/pkg/db"
)

type authority interface {
	cache.Catalog
	checkout.Authority
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var (
		source    authority
		discounts *service.DiscountService
		conn      *sql.DB
		rdb       *redis.Client
	)

	switch cfg.Backend.Mode {
	case config.BackendModeLocal:
		conn, err = db.NewPostgresConnection(cfg.Postgres)
		if err != nil {
			log.Fatalw("db connect", "error", err)
		}
		defer conn.Close()

		discounts = service.NewDiscountService(conn,
			repository.NewDiscountRepo(conn),
			repository.NewUsageRepo(conn),
			repository.NewOrderRepo(conn),
			log.With("component", "discount_service"),
		)
		source = discounts
	default:
		source = backend.NewClient(cfg.Backend, log.With("component", "backend"))
	}

	catalog := cache.NewDiscountCache(source, cfg.Cache.AutoApplyTTL, cfg.Cache.LookupTTL, cfg.Cache.CleanupInterval)
	if discounts != nil {
		discounts.OnChange(catalog.Invalidate)
	}

	var store checkout.AppliedStore
	switch cfg.Checkout.AppliedStore {
	case "redis":
		rdb, err = db.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatalw("redis connect", "error", err)
		}
		defer rdb.Close()
		store = repository.NewAppliedRepo(rdb, cfg.Redis.KeyPrefix, cfg.Checkout.AppliedTTL)
	default:
		store = checkout.NewMemoryStore(cfg.Checkout.AppliedTTL, cfg.Cache.CleanupInterval)
	}

	manager := checkout.NewManager(catalog, source, store, cfg.Checkout.SessionTTL, log.With("component", "checkout"))

	handler := api.NewRouter(api.NewHandlers(catalog, manager, discounts, log), log.With("component", "http"))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnw("http server shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	log.Infow("starting pricing-service", "address", cfg.Server.Address, "backend_mode", cfg.Backend.Mode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("listen", "error", err)
	}

	<-idleConnsClosed
	log.Infow("server stopped")
}
