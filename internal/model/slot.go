package model

import "time"

// Slot is one scheduled work or break interval of a task.
type Slot struct {
	ID     string    `gorm:"primaryKey;size:36"`
	TaskID uint      `gorm:"index"`
	Start  time.Time `gorm:"column:start_at;index"`
	End    time.Time `gorm:"column:end_at"`
	Kind   string
	Done   bool `gorm:"default:false"`
}
