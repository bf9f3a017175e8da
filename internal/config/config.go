package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"study-planner/internal/planner"
)

// Config keeps runtime settings for the planner bot and CLI.
type Config struct {
	TelegramToken    string
	DatabaseURL      string
	LogMode          string
	ReportInterval   time.Duration
	WeeklyReplanSpec string
	HorizonDays      int
	Window           planner.Window
	Location         *time.Location
	// DefaultPolicy applies to users who never saved their own.
	DefaultPolicy planner.Policy
}

// Load reads configuration from environment variables with sane defaults.
// The Telegram token is only checked by ValidateBot so the CLI can run without it.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:    strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogMode:          strings.TrimSpace(os.Getenv("LOG_MODE")),
		ReportInterval:   parseInterval(strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS"))),
		WeeklyReplanSpec: strings.TrimSpace(os.Getenv("WEEKLY_REPLAN_SPEC")),
		HorizonDays:      7,
		Window:           planner.DefaultWindow,
		Location:         time.Local,
	}

	var raw planner.RawPolicy
	if path := strings.TrimSpace(os.Getenv("PLANNER_CONFIG")); path != "" {
		fc, err := readFileConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("planner config: %w", err)
		}
		if err := fc.apply(&cfg, &raw); err != nil {
			return cfg, fmt.Errorf("planner config %s: %w", path, err)
		}
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "study_planner.db"
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}
	if cfg.WeeklyReplanSpec == "" {
		cfg.WeeklyReplanSpec = "0 0 6 * * MON"
	}

	var invalid []string

	if raw := strings.TrimSpace(os.Getenv("PLANNER_HORIZON_DAYS")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 || days > 31 {
			invalid = append(invalid, "PLANNER_HORIZON_DAYS")
		} else {
			cfg.HorizonDays = days
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PLANNER_DAY_START")); raw != "" {
		start, err := parseClock(raw)
		if err != nil {
			invalid = append(invalid, "PLANNER_DAY_START")
		} else {
			cfg.Window.Start = start
		}
	}
	if raw := strings.TrimSpace(os.Getenv("PLANNER_DAY_END")); raw != "" {
		end, err := parseClock(raw)
		if err != nil {
			invalid = append(invalid, "PLANNER_DAY_END")
		} else {
			cfg.Window.End = end
		}
	}
	if !cfg.Window.Valid() {
		invalid = append(invalid, "PLANNER_DAY_START/PLANNER_DAY_END")
	}

	if raw := strings.TrimSpace(os.Getenv("PLANNER_TIMEZONE")); raw != "" {
		loc, err := time.LoadLocation(raw)
		if err != nil {
			invalid = append(invalid, "PLANNER_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if v := envInt("POMODORO_MINS", &invalid); v != nil {
		raw.PomodoroMins = v
	}
	if v := envInt("BREAK_MINS", &invalid); v != nil {
		raw.BreakMins = v
	}
	if v := envInt("MAX_DAILY_MINS", &invalid); v != nil {
		raw.MaxDailyMins = v
	}
	if v := strings.TrimSpace(os.Getenv("CRAM_MODE")); v != "" {
		cram, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "CRAM_MODE")
		} else {
			raw.Cram = &cram
		}
	}
	policy, err := planner.Normalize(raw)
	if err != nil {
		return cfg, fmt.Errorf("default policy: %w", err)
	}
	cfg.DefaultPolicy = policy

	if len(invalid) > 0 {
		return cfg, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

// parseClock turns "HH:MM" into an offset from midnight. "24:00" is allowed
// as the end of the day.
func parseClock(raw string) (time.Duration, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

func envInt(name string, invalid *[]string) *int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*invalid = append(*invalid, name)
		return nil
	}
	return &v
}
