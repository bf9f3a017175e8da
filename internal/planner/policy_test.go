package planner

import (
	"errors"
	"testing"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestNormalizeDefaults(t *testing.T) {
	p, err := Normalize(RawPolicy{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p != DefaultPolicy() {
		t.Errorf("Normalize(empty) = %+v, want %+v", p, DefaultPolicy())
	}
	if p.PomodoroMins != 25 || p.BreakMins != 5 || p.MaxDailyMins != 240 || p.Cram {
		t.Errorf("unexpected defaults %+v", p)
	}
}

func TestNormalizeKeepsProvidedValues(t *testing.T) {
	p, err := Normalize(RawPolicy{PomodoroMins: intp(50), BreakMins: intp(10), MaxDailyMins: intp(300), Cram: boolp(true)})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := Policy{PomodoroMins: 50, BreakMins: 10, MaxDailyMins: 300, Cram: true}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestNormalizeRejectsNonPositive(t *testing.T) {
	cases := []struct {
		name string
		raw  RawPolicy
	}{
		{"zero pomodoro", RawPolicy{PomodoroMins: intp(0)}},
		{"negative break", RawPolicy{BreakMins: intp(-5)}},
		{"zero daily", RawPolicy{MaxDailyMins: intp(0)}},
		{"daily below pomodoro", RawPolicy{PomodoroMins: intp(50), MaxDailyMins: intp(40)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.raw)
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("err = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestMergeOverride(t *testing.T) {
	base := DefaultPolicy()
	merged, err := base.Merge(PolicyOverride{MaxDailyMins: intp(60), Cram: boolp(true)})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.MaxDailyMins != 60 || !merged.Cram || merged.PomodoroMins != 25 {
		t.Errorf("merged = %+v", merged)
	}
	if base.MaxDailyMins != 240 {
		t.Error("Merge must not modify the receiver")
	}

	if _, err := base.Merge(PolicyOverride{BreakMins: intp(0)}); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("Merge with invalid override: err = %v", err)
	}
}

func TestSessionsFor(t *testing.T) {
	p := DefaultPolicy()
	cases := map[int]int{0: 0, -10: 0, 1: 1, 25: 1, 26: 2, 90: 4, 100: 4}
	for mins, want := range cases {
		if got := p.SessionsFor(mins); got != want {
			t.Errorf("SessionsFor(%d) = %d, want %d", mins, got, want)
		}
	}
}
