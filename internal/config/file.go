package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"study-planner/internal/planner"
)

// fileConfig is the optional YAML file named by PLANNER_CONFIG. Environment
// variables win over anything set here.
type fileConfig struct {
	HorizonDays *int   `yaml:"horizon_days"`
	DayStart    string `yaml:"day_start"`
	DayEnd      string `yaml:"day_end"`
	Timezone    string `yaml:"timezone"`
	WeeklySpec  string `yaml:"weekly_replan_spec"`
	Policy      struct {
		PomodoroMins *int  `yaml:"pomodoro_mins"`
		BreakMins    *int  `yaml:"break_mins"`
		MaxDailyMins *int  `yaml:"max_daily_mins"`
		Cram         *bool `yaml:"cram"`
	} `yaml:"policy"`
}

func readFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// apply copies file values onto cfg and the raw policy.
func (fc fileConfig) apply(cfg *Config, raw *planner.RawPolicy) error {
	if fc.HorizonDays != nil {
		if *fc.HorizonDays <= 0 || *fc.HorizonDays > 31 {
			return fmt.Errorf("horizon_days %d out of range", *fc.HorizonDays)
		}
		cfg.HorizonDays = *fc.HorizonDays
	}
	if fc.DayStart != "" {
		start, err := parseClock(fc.DayStart)
		if err != nil {
			return fmt.Errorf("day_start: %w", err)
		}
		cfg.Window.Start = start
	}
	if fc.DayEnd != "" {
		end, err := parseClock(fc.DayEnd)
		if err != nil {
			return fmt.Errorf("day_end: %w", err)
		}
		cfg.Window.End = end
	}
	if fc.Timezone != "" {
		loc, err := time.LoadLocation(fc.Timezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		cfg.Location = loc
	}
	if fc.WeeklySpec != "" && cfg.WeeklyReplanSpec == "" {
		cfg.WeeklyReplanSpec = fc.WeeklySpec
	}
	raw.PomodoroMins = fc.Policy.PomodoroMins
	raw.BreakMins = fc.Policy.BreakMins
	raw.MaxDailyMins = fc.Policy.MaxDailyMins
	raw.Cram = fc.Policy.Cram
	return nil
}
