package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSchedulerConfig struct {
	redisURL string
	queue    string
}

func (f fakeSchedulerConfig) GetRedisURL() string                         { return f.redisURL }
func (f fakeSchedulerConfig) GetRedisTLSInsecure() bool                   { return false }
func (f fakeSchedulerConfig) GetAsynqQueueName() string                   { return f.queue }
func (f fakeSchedulerConfig) GetAsynqConcurrency() int                    { return 1 }
func (f fakeSchedulerConfig) GetClaimCheckInterval() time.Duration        { return time.Minute }
func (f fakeSchedulerConfig) GetSLACheckInterval() time.Duration          { return time.Minute }
func (f fakeSchedulerConfig) GetNightReleaseInterval() time.Duration      { return time.Minute }
func (f fakeSchedulerConfig) GetAlarmInterval() time.Duration             { return time.Minute }
func (f fakeSchedulerConfig) GetCapacityReconcileInterval() time.Duration { return time.Minute }

func TestNewClient_RequiresRedisURL(t *testing.T) {
	if _, err := NewClient(fakeSchedulerConfig{}); err == nil {
		t.Fatal("expected error when redis url is missing")
	}
}

func TestEnqueueJob_PushesTaskOntoQueue(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(fakeSchedulerConfig{redisURL: "redis://" + mr.Addr(), queue: "jobs"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.EnqueueJob(context.Background(), TaskCheckClaims, JobPayload{TriggeredBy: "manual"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	pending, err := rdb.LLen(context.Background(), "asynq:{jobs}:pending").Result()
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected 1 pending task, got %d", pending)
	}
}

func TestRedisClientOpt_ParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6380/2", false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "localhost:6380" {
		t.Fatalf("expected addr localhost:6380, got %q", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Fatalf("expected password to carry over, got %q", opt.Password)
	}
	if opt.DB != 2 {
		t.Fatalf("expected db 2, got %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Fatal("plain redis url should not produce a TLS config")
	}
}

func TestRedisClientOpt_InsecureTLS(t *testing.T) {
	opt, err := redisClientOpt("rediss://localhost:6379", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config for rediss url")
	}
}
