package scheduler

import (
	"testing"

	"github.com/hibiken/asynq"
)

func TestParseJobPayload_RoundTrip(t *testing.T) {
	task, err := NewJobTask(TaskCheckClaims, JobPayload{TriggeredBy: "manual"})
	if err != nil {
		t.Fatalf("NewJobTask: %v", err)
	}
	if task.Type() != TaskCheckClaims {
		t.Fatalf("expected task type %q, got %q", TaskCheckClaims, task.Type())
	}

	payload, err := ParseJobPayload(task)
	if err != nil {
		t.Fatalf("ParseJobPayload: %v", err)
	}
	if payload.TriggeredBy != "manual" {
		t.Fatalf("expected triggeredBy manual, got %q", payload.TriggeredBy)
	}
}

func TestParseJobPayload_EmptyDefaultsToScheduler(t *testing.T) {
	payload, err := ParseJobPayload(asynq.NewTask(TaskSendAlarms, nil))
	if err != nil {
		t.Fatalf("ParseJobPayload: %v", err)
	}
	if payload.TriggeredBy != "scheduler" {
		t.Fatalf("expected default triggeredBy scheduler, got %q", payload.TriggeredBy)
	}
}

func TestParseJobPayload_BlankFieldDefaultsToScheduler(t *testing.T) {
	task := asynq.NewTask(TaskCheckClaimSLA, []byte(`{"triggeredBy":""}`))

	payload, err := ParseJobPayload(task)
	if err != nil {
		t.Fatalf("ParseJobPayload: %v", err)
	}
	if payload.TriggeredBy != "scheduler" {
		t.Fatalf("expected default triggeredBy scheduler, got %q", payload.TriggeredBy)
	}
}

func TestParseJobPayload_MalformedPayload(t *testing.T) {
	task := asynq.NewTask(TaskCheckClaims, []byte(`{not json`))

	if _, err := ParseJobPayload(task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
