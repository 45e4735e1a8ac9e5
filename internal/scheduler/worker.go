package scheduler

import (
	"context"
	"fmt"

	"prime_crm_backend/internal/notification"
	routingsvc "prime_crm_backend/internal/routing/service"
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	outboxRetryBatch = 100
)

// Worker consumes the periodic routing jobs from the queue.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	routing *routingsvc.Service
	emails  *notification.Dispatcher
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, routing *routingsvc.Service, emails *notification.Dispatcher, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		routing: routing,
		emails:  emails,
		log:     log,
	}

	mux.HandleFunc(TaskCheckClaims, w.handleCheckClaims)
	mux.HandleFunc(TaskCheckClaimSLA, w.handleCheckClaimSLA)
	mux.HandleFunc(TaskCheckActionSLA, w.handleCheckActionSLA)
	mux.HandleFunc(TaskReleaseNightLeads, w.handleReleaseNightLeads)
	mux.HandleFunc(TaskSendAlarms, w.handleSendAlarms)
	mux.HandleFunc(TaskReconcileCapacity, w.handleReconcileCapacity)
	mux.HandleFunc(TaskEmailOutboxRetry, w.handleEmailOutboxRetry)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleCheckClaims(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobPayload(task)
	if err != nil {
		return err
	}

	summary, err := w.routing.CheckUnclaimed(ctx)
	if err != nil {
		return err
	}
	if summary.Processed > 0 {
		w.log.Info("check claims run",
			"triggeredBy", payload.TriggeredBy,
			"processed", summary.Processed,
			"escalated", summary.Escalated,
			"assignedToAdmin", summary.AssignedToAdmin,
		)
	}
	return nil
}

func (w *Worker) handleCheckClaimSLA(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobPayload(task)
	if err != nil {
		return err
	}

	flagged, err := w.routing.CheckClaimSLA(ctx)
	if err != nil {
		return err
	}
	if flagged > 0 {
		w.log.Info("claim sla run", "triggeredBy", payload.TriggeredBy, "flagged", flagged)
	}
	return nil
}

func (w *Worker) handleCheckActionSLA(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobPayload(task)
	if err != nil {
		return err
	}

	flagged, err := w.routing.CheckFirstActionSLA(ctx)
	if err != nil {
		return err
	}
	if flagged > 0 {
		w.log.Info("first action sla run", "triggeredBy", payload.TriggeredBy, "flagged", flagged)
	}
	return nil
}

func (w *Worker) handleReleaseNightLeads(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobPayload(task)
	if err != nil {
		return err
	}

	released, err := w.routing.ReleaseNightLeads(ctx)
	if err != nil {
		return err
	}
	if released > 0 {
		w.log.Info("night release run", "triggeredBy", payload.TriggeredBy, "released", released)
	}
	return nil
}

func (w *Worker) handleSendAlarms(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobPayload(task)
	if err != nil {
		return err
	}

	sent, err := w.routing.SendAlarms(ctx)
	if err != nil {
		return err
	}
	if sent > 0 {
		w.log.Info("alarm run", "triggeredBy", payload.TriggeredBy, "alarms", sent)
	}
	return nil
}

func (w *Worker) handleReconcileCapacity(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobPayload(task)
	if err != nil {
		return err
	}

	corrected, err := w.routing.ReconcileCapacity(ctx)
	if err != nil {
		return err
	}
	if corrected > 0 {
		w.log.Info("capacity reconcile run", "triggeredBy", payload.TriggeredBy, "corrected", corrected)
	}
	return nil
}

func (w *Worker) handleEmailOutboxRetry(ctx context.Context, task *asynq.Task) error {
	if w.emails == nil {
		return nil
	}

	payload, err := ParseJobPayload(task)
	if err != nil {
		return err
	}

	succeeded, failed, err := w.emails.RetryDue(ctx, outboxRetryBatch)
	if err != nil {
		return err
	}
	if succeeded > 0 || failed > 0 {
		w.log.Info("email outbox retry run",
			"triggeredBy", payload.TriggeredBy, "succeeded", succeeded, "failed", failed)
	}
	return nil
}
