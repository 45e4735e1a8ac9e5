package service

import (
	"testing"
	"time"
)

type fakeRoutingConfig struct {
	startHour int
	endHour   int
}

func (f fakeRoutingConfig) GetMaxEscalationRounds() int            { return 4 }
func (f fakeRoutingConfig) GetDefaultClaimWindow() time.Duration   { return 15 * time.Minute }
func (f fakeRoutingConfig) GetSLAFirstActionWindow() time.Duration { return 24 * time.Hour }
func (f fakeRoutingConfig) GetExpiredLeadBatchSize() int           { return 50 }
func (f fakeRoutingConfig) GetMaxAlarmLevel() int                  { return 4 }
func (f fakeRoutingConfig) GetNightHoldStartHour() int             { return f.startHour }
func (f fakeRoutingConfig) GetNightHoldEndHour() int               { return f.endHour }

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func TestIsNight_WindowWrappingMidnight(t *testing.T) {
	svc := &Service{cfg: fakeRoutingConfig{startHour: 22, endHour: 8}}

	tests := []struct {
		at   time.Time
		want bool
	}{
		{at(21, 59), false},
		{at(22, 0), true},
		{at(23, 30), true},
		{at(0, 0), true},
		{at(7, 59), true},
		{at(8, 0), false},
		{at(12, 0), false},
	}

	for _, tc := range tests {
		if got := svc.isNight(tc.at); got != tc.want {
			t.Errorf("isNight(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
		}
	}
}

func TestIsNight_DaytimeWindow(t *testing.T) {
	svc := &Service{cfg: fakeRoutingConfig{startHour: 1, endHour: 5}}

	if !svc.isNight(at(3, 0)) {
		t.Fatal("03:00 should fall inside a 01-05 window")
	}
	if svc.isNight(at(5, 0)) {
		t.Fatal("end hour is exclusive")
	}
}

func TestIsNight_DisabledWhenHoursEqual(t *testing.T) {
	svc := &Service{cfg: fakeRoutingConfig{startHour: 8, endHour: 8}}

	if svc.isNight(at(8, 0)) {
		t.Fatal("equal start and end hours disable the hold")
	}
}

func TestNextReleaseTime(t *testing.T) {
	svc := &Service{cfg: fakeRoutingConfig{startHour: 22, endHour: 8}}

	// Before the end hour: release today.
	got := svc.nextReleaseTime(at(2, 30))
	want := at(8, 0)
	if !got.Equal(want) {
		t.Fatalf("expected release at %s, got %s", want, got)
	}

	// After the end hour: release tomorrow.
	got = svc.nextReleaseTime(at(23, 0))
	want = at(8, 0).Add(24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expected release at %s, got %s", want, got)
	}

	// Exactly at the end hour rolls to the next day.
	got = svc.nextReleaseTime(at(8, 0))
	if !got.Equal(want) {
		t.Fatalf("expected release at %s, got %s", want, got)
	}
}
