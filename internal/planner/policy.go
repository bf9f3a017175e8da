package planner

import "fmt"

const (
	DefaultPomodoroMins = 25
	DefaultBreakMins    = 5
	DefaultMaxDailyMins = 240
)

// Policy is a validated per-user scheduling configuration.
type Policy struct {
	PomodoroMins int  `json:"pomodoroMins"`
	BreakMins    int  `json:"breakMins"`
	MaxDailyMins int  `json:"maxDailyMins"`
	Cram         bool `json:"cram"`
}

// RawPolicy is an unvalidated policy where every field is optional.
type RawPolicy struct {
	PomodoroMins *int
	BreakMins    *int
	MaxDailyMins *int
	Cram         *bool
}

// PolicyOverride is a partial policy merged onto a stored one for a single call.
type PolicyOverride = RawPolicy

// DefaultPolicy returns the 25/5/240 policy without cram.
func DefaultPolicy() Policy {
	return Policy{
		PomodoroMins: DefaultPomodoroMins,
		BreakMins:    DefaultBreakMins,
		MaxDailyMins: DefaultMaxDailyMins,
	}
}

// Normalize fills missing fields with defaults and rejects non-positive
// minute values. Values are never clamped.
func Normalize(raw RawPolicy) (Policy, error) {
	p := DefaultPolicy()
	if raw.PomodoroMins != nil {
		p.PomodoroMins = *raw.PomodoroMins
	}
	if raw.BreakMins != nil {
		p.BreakMins = *raw.BreakMins
	}
	if raw.MaxDailyMins != nil {
		p.MaxDailyMins = *raw.MaxDailyMins
	}
	if raw.Cram != nil {
		p.Cram = *raw.Cram
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the minute fields. A daily cap below one pomodoro can never
// schedule work and is reported as an invalid policy as well.
func (p Policy) Validate() error {
	switch {
	case p.PomodoroMins <= 0:
		return fmt.Errorf("%w: pomodoro minutes must be positive, got %d", ErrInvalidPolicy, p.PomodoroMins)
	case p.BreakMins <= 0:
		return fmt.Errorf("%w: break minutes must be positive, got %d", ErrInvalidPolicy, p.BreakMins)
	case p.MaxDailyMins <= 0:
		return fmt.Errorf("%w: max daily minutes must be positive, got %d", ErrInvalidPolicy, p.MaxDailyMins)
	case p.MaxDailyMins < p.PomodoroMins:
		return fmt.Errorf("%w: max daily minutes %d is below one pomodoro (%d)", ErrInvalidPolicy, p.MaxDailyMins, p.PomodoroMins)
	}
	return nil
}

// Merge applies a partial override and validates the result.
func (p Policy) Merge(o PolicyOverride) (Policy, error) {
	raw := RawPolicy{
		PomodoroMins: &p.PomodoroMins,
		BreakMins:    &p.BreakMins,
		MaxDailyMins: &p.MaxDailyMins,
		Cram:         &p.Cram,
	}
	if o.PomodoroMins != nil {
		raw.PomodoroMins = o.PomodoroMins
	}
	if o.BreakMins != nil {
		raw.BreakMins = o.BreakMins
	}
	if o.MaxDailyMins != nil {
		raw.MaxDailyMins = o.MaxDailyMins
	}
	if o.Cram != nil {
		raw.Cram = o.Cram
	}
	return Normalize(raw)
}

// SessionsFor returns the number of whole pomodoros needed to cover mins.
func (p Policy) SessionsFor(mins int) int {
	if mins <= 0 {
		return 0
	}
	return (mins + p.PomodoroMins - 1) / p.PomodoroMins
}
