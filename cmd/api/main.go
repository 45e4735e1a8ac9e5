package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prime_crm_backend/internal/adapters"
	"prime_crm_backend/internal/adapters/storage"
	"prime_crm_backend/internal/agents"
	"prime_crm_backend/internal/email"
	"prime_crm_backend/internal/events"
	apphttp "prime_crm_backend/internal/http"
	"prime_crm_backend/internal/http/router"
	"prime_crm_backend/internal/leads"
	"prime_crm_backend/internal/notification"
	"prime_crm_backend/internal/routing"
	"prime_crm_backend/migrations"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/db"
	"prime_crm_backend/platform/logger"
	"prime_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, migrations.Dir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// Object store for lead attachments (MinIO)
	store, err := storage.New(cfg)
	if err != nil {
		log.Error("failed to initialize object store", "error", err)
		panic("failed to initialize object store: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure attachments bucket", 5, 2*time.Second, func() error {
		return store.EnsureBucket(ctx)
	}); err != nil {
		log.Error("failed to ensure attachments bucket exists", "error", err)
		panic("failed to ensure attachments bucket exists: " + err.Error())
	}
	log.Info("object store initialized", "bucket", cfg.GetMinioBucketLeadAttachments())

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	agentsModule := agents.NewModule(pool, cfg, log, val)
	agentsAdapter := adapters.NewAgentsAdapter(agentsModule.Repository())

	leadsModule := leads.NewModule(pool, agentsAdapter, eventBus, cfg, log, val)
	routingModule := routing.NewModule(pool, eventBus, cfg, log, val)

	// Notification module subscribes to domain events
	notificationModule := notification.New(pool, sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// Cross-module wiring (breaks circular dependencies via setters)
	leadsModule.Service().SetRouter(routingModule.Service())
	leadsModule.Service().SetObjectStore(store, cfg.GetMinIOMaxFileSize())
	routingModule.Service().SetReconciler(agentsModule.Repository())
	notificationModule.SetDirectory(agentsAdapter)
	notificationModule.SetLeadReader(adapters.NewLeadsAdapter(leadsModule.Repository()))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			agentsModule,
			leadsModule,
			routingModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
