package model

import "time"

// Policy stores a user's scheduling preferences.
type Policy struct {
	UserID       uint `gorm:"primaryKey;autoIncrement:false"`
	PomodoroMins int
	BreakMins    int
	MaxDailyMins int
	CramMode     bool
	UpdatedAt    time.Time
}
