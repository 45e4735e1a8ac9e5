package scheduler

import (
	"fmt"
	"time"

	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the recurring routing jobs with asynq's scheduler.
// Runs alongside the worker in the scheduler binary.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	p := &Periodic{scheduler: scheduler, log: log}

	entries := []struct {
		taskType string
		every    time.Duration
	}{
		{TaskCheckClaims, cfg.GetClaimCheckInterval()},
		{TaskCheckClaimSLA, cfg.GetClaimCheckInterval()},
		{TaskCheckActionSLA, cfg.GetSLACheckInterval()},
		{TaskReleaseNightLeads, cfg.GetNightReleaseInterval()},
		{TaskSendAlarms, cfg.GetAlarmInterval()},
		{TaskReconcileCapacity, cfg.GetCapacityReconcileInterval()},
		{TaskEmailOutboxRetry, cfg.GetClaimCheckInterval()},
	}

	for _, entry := range entries {
		if entry.every <= 0 {
			continue
		}
		task, taskErr := NewJobTask(entry.taskType, JobPayload{TriggeredBy: "scheduler"})
		if taskErr != nil {
			return nil, taskErr
		}
		if _, regErr := scheduler.Register(
			fmt.Sprintf("@every %s", entry.every),
			task,
			asynq.Queue(queue),
		); regErr != nil {
			return nil, fmt.Errorf("register %s: %w", entry.taskType, regErr)
		}
	}

	return p, nil
}

// Run blocks until the scheduler stops.
func (p *Periodic) Run() error {
	if p == nil || p.scheduler == nil {
		return nil
	}
	return p.scheduler.Run()
}

func (p *Periodic) Shutdown() {
	if p != nil && p.scheduler != nil {
		p.scheduler.Shutdown()
	}
}
