// Package planner turns a user's outstanding tasks and a time-budget policy
// into work/break sessions and keeps them feasible as the plan ages.
//
// Everything in this package is a pure function of its inputs. Callers pass
// "now" explicitly and apply the returned plans themselves.
package planner

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo    Status = "todo"
	StatusDoing   Status = "doing"
	StatusDone    Status = "done"
	StatusBlocked Status = "blocked"
)

// Schedulable reports whether tasks in this state take part in planning.
func (s Status) Schedulable() bool {
	return s == StatusTodo || s == StatusDoing
}

// ParseStatus validates a textual status.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusTodo, StatusDoing, StatusDone, StatusBlocked:
		return s, nil
	default:
		return "", fmt.Errorf("planner: unknown status %q", raw)
	}
}

// SlotKind distinguishes focus sessions from breaks.
type SlotKind string

const (
	SlotWork  SlotKind = "work"
	SlotBreak SlotKind = "break"
)

// Slot is a scheduled interval of work or break for exactly one task.
type Slot struct {
	ID     string
	TaskID uint
	Start  time.Time
	End    time.Time
	Kind   SlotKind
	Done   bool
}

// Minutes returns the slot length in whole minutes.
func (s Slot) Minutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

func (s Slot) overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// Task is the planner's view of a unit of work.
type Task struct {
	ID       uint
	Title    string
	Course   string
	EstMins  int
	DueAt    time.Time
	Priority int
	Status   Status
	Slots    []Slot

	// MinutesSpent is the actual time recorded when the task was finished.
	MinutesSpent int
	CompletedAt  *time.Time
}

// HoursToDeadline is negative for overdue tasks.
func (t Task) HoursToDeadline(now time.Time) float64 {
	return t.DueAt.Sub(now).Hours()
}

// HasFutureWork reports whether any slot starts at or after now.
func (t Task) HasFutureWork(now time.Time) bool {
	for _, s := range t.Slots {
		if !s.Start.Before(now) {
			return true
		}
	}
	return false
}
