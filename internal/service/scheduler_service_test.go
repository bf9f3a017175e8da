package service

import (
	"testing"
	"time"
)

func TestBuildDailySpec(t *testing.T) {
	cases := []struct {
		at   time.Duration
		want string
	}{
		{0, "0 0 0 * * *"},
		{8*time.Hour + 30*time.Minute, "0 30 8 * * *"},
		{23*time.Hour + 59*time.Minute, "0 59 23 * * *"},
	}
	for _, tc := range cases {
		got, err := buildDailySpec(tc.at)
		if err != nil || got != tc.want {
			t.Errorf("buildDailySpec(%v) = %q, %v; want %q", tc.at, got, err, tc.want)
		}
	}
	if _, err := buildDailySpec(24 * time.Hour); err == nil {
		t.Error("24h should be rejected")
	}
}

func TestScheduleSpec(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	if _, err := s.ScheduleSpec("0 0 6 * * MON", func() {}); err != nil {
		t.Errorf("weekly spec: %v", err)
	}
	if _, err := s.ScheduleSpec("every monday", func() {}); err == nil {
		t.Error("garbage spec accepted")
	}
	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Error("zero interval accepted")
	}
	id, err := s.ScheduleInterval(time.Hour, func() {})
	if err != nil {
		t.Fatal(err)
	}
	s.Remove(id)
}
