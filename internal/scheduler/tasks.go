package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task types for the periodic routing jobs.
const (
	TaskCheckClaims       = "routing.check_claims"
	TaskCheckClaimSLA     = "routing.check_claim_sla"
	TaskCheckActionSLA    = "routing.check_action_sla"
	TaskReleaseNightLeads = "routing.release_night_leads"
	TaskSendAlarms        = "routing.send_alarms"
	TaskReconcileCapacity = "routing.reconcile_capacity"
	TaskEmailOutboxRetry  = "email.outbox.retry"
)

// JobPayload tags who started a job run, for log correlation.
type JobPayload struct {
	TriggeredBy string `json:"triggeredBy"`
}

func NewJobTask(taskType string, payload JobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseJobPayload(task *asynq.Task) (JobPayload, error) {
	var payload JobPayload
	if len(task.Payload()) == 0 {
		return JobPayload{TriggeredBy: "scheduler"}, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return JobPayload{}, err
	}
	if payload.TriggeredBy == "" {
		payload.TriggeredBy = "scheduler"
	}
	return payload, nil
}
