package model

import (
	"time"

	"gorm.io/datatypes"
)

// Task types accepted by the planner. Anything else is stored as homework.
const (
	TaskTypeHomework = "homework"
	TaskTypeProject  = "project"
	TaskTypeLab      = "lab"
	TaskTypeEssay    = "essay"
	TaskTypeExam     = "exam"
)

// Task represents a single study item in the planner.
type Task struct {
	ID       uint    `gorm:"primaryKey"`
	UserID   uint    `gorm:"index"`
	CourseID *uint   `gorm:"index"`
	Course   *Course `gorm:"constraint:OnDelete:SET NULL"`
	Title    string
	Type     string
	Notes    string
	EstMins  int
	DueAt    time.Time `gorm:"index"`
	Priority int       `gorm:"default:3"`
	Status   string    `gorm:"index;default:todo"`
	Steps    datatypes.JSONSlice[string]
	Tags     datatypes.JSONSlice[string]
	Rubric   string
	Slots    []Slot `gorm:"constraint:OnDelete:CASCADE"`

	// Metrics recorded while the task is worked on and when it is finished.
	Sessions     int
	MinutesSpent int
	CompletedAt  *time.Time

	LastPlannedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CourseName returns the course name when the relation is loaded.
func (t Task) CourseName() string {
	if t.Course == nil {
		return ""
	}
	return t.Course.Name
}
