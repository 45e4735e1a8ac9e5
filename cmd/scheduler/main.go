package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prime_crm_backend/internal/adapters"
	agentsrepo "prime_crm_backend/internal/agents/repository"
	"prime_crm_backend/internal/email"
	"prime_crm_backend/internal/events"
	leadsrepo "prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/notification"
	routingrepo "prime_crm_backend/internal/routing/repository"
	routingsvc "prime_crm_backend/internal/routing/service"
	"prime_crm_backend/internal/scheduler"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/db"
	"prime_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Notification module consumes the events published by the periodic
	// checks (escalations, SLA breaches, claim alarms).
	agentsRepo := agentsrepo.New(pool)
	notificationModule := notification.New(pool, sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	notificationModule.SetDirectory(adapters.NewAgentsAdapter(agentsRepo))
	notificationModule.SetLeadReader(adapters.NewLeadsAdapter(leadsrepo.New(pool)))

	routingService := routingsvc.New(routingrepo.New(pool), eventBus, cfg, log)
	routingService.SetReconciler(agentsRepo)

	worker, err := scheduler.NewWorker(cfg, routingService, notificationModule.Emails(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	go func() {
		if err := periodic.Run(); err != nil {
			log.Error("periodic scheduler stopped", "error", err)
		}
	}()
	defer periodic.Shutdown()

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
