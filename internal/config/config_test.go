package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"study-planner/internal/planner"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "LOG_MODE", "REPORT_INTERVAL_HOURS", "WEEKLY_REPLAN_SPEC",
		"PLANNER_HORIZON_DAYS", "PLANNER_DAY_START", "PLANNER_DAY_END", "PLANNER_TIMEZONE",
		"POMODORO_MINS", "BREAK_MINS", "MAX_DAILY_MINS", "CRAM_MODE", "PLANNER_CONFIG",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "study_planner.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.ReportInterval != 5*time.Hour {
		t.Errorf("ReportInterval = %v", cfg.ReportInterval)
	}
	if cfg.HorizonDays != 7 || cfg.Window != planner.DefaultWindow {
		t.Errorf("horizon %d window %+v", cfg.HorizonDays, cfg.Window)
	}
	if cfg.DefaultPolicy != planner.DefaultPolicy() {
		t.Errorf("DefaultPolicy = %+v", cfg.DefaultPolicy)
	}
	if err := cfg.ValidateBot(); err == nil {
		t.Error("ValidateBot should require a token")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("REPORT_INTERVAL_HOURS", "3")
	t.Setenv("PLANNER_HORIZON_DAYS", "14")
	t.Setenv("PLANNER_DAY_START", "09:30")
	t.Setenv("PLANNER_DAY_END", "24:00")
	t.Setenv("PLANNER_TIMEZONE", "UTC")
	t.Setenv("POMODORO_MINS", "50")
	t.Setenv("BREAK_MINS", "10")
	t.Setenv("CRAM_MODE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		t.Errorf("ValidateBot: %v", err)
	}
	if cfg.ReportInterval != 3*time.Hour || cfg.HorizonDays != 14 {
		t.Errorf("interval %v horizon %d", cfg.ReportInterval, cfg.HorizonDays)
	}
	if cfg.Window.Start != 9*time.Hour+30*time.Minute || cfg.Window.End != 24*time.Hour {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Location != time.UTC {
		t.Errorf("location = %v", cfg.Location)
	}
	want := planner.Policy{PomodoroMins: 50, BreakMins: 10, MaxDailyMins: 240, Cram: true}
	if cfg.DefaultPolicy != want {
		t.Errorf("policy = %+v", cfg.DefaultPolicy)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLANNER_HORIZON_DAYS", "zero")
	t.Setenv("PLANNER_DAY_START", "25:00")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "PLANNER_HORIZON_DAYS") || !strings.Contains(err.Error(), "PLANNER_DAY_START") {
		t.Errorf("error does not name both variables: %v", err)
	}

	clearEnv(t)
	t.Setenv("MAX_DAILY_MINS", "0")
	if _, err := Load(); !errors.Is(err, planner.ErrInvalidPolicy) {
		t.Errorf("err = %v, want ErrInvalidPolicy", err)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"00:00": 0,
		"08:15": 8*time.Hour + 15*time.Minute,
		"24:00": 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := parseClock(in)
		if err != nil || got != want {
			t.Errorf("parseClock(%q) = %v, %v", in, got, err)
		}
	}
	for _, bad := range []string{"8", "24:30", "12:60", "ab:00"} {
		if _, err := parseClock(bad); err == nil {
			t.Errorf("parseClock(%q) should fail", bad)
		}
	}
}

func TestLoadFileConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.yaml")
	data := `horizon_days: 10
day_start: "07:00"
timezone: UTC
policy:
  pomodoro_mins: 45
  break_mins: 15
  cram: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANNER_CONFIG", path)
	t.Setenv("BREAK_MINS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HorizonDays != 10 || cfg.Window.Start != 7*time.Hour || cfg.Location != time.UTC {
		t.Errorf("cfg = %+v", cfg)
	}
	want := planner.Policy{PomodoroMins: 45, BreakMins: 5, MaxDailyMins: planner.DefaultMaxDailyMins, Cram: true}
	if cfg.DefaultPolicy != want {
		t.Errorf("DefaultPolicy = %+v, want %+v", cfg.DefaultPolicy, want)
	}
}

func TestLoadFileConfigRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.yaml")
	if err := os.WriteFile(path, []byte("horizon: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANNER_CONFIG", path)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "planner config") {
		t.Errorf("err = %v", err)
	}
}
