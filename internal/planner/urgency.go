package planner

import (
	"sort"
	"time"
)

// UrgencyKey is the ordering key of a task at a given instant. Overdue tasks
// come first and are ordered by priority, then by how long they have been
// overdue. Other tasks are ordered by time left, then by priority.
type UrgencyKey struct {
	Overdue  bool
	Left     time.Duration
	Priority int
}

// Urgency computes the key of t at now. Priority is clamped to 1..5.
func Urgency(t Task, now time.Time) UrgencyKey {
	left := t.DueAt.Sub(now)
	return UrgencyKey{
		Overdue:  left <= 0,
		Left:     left,
		Priority: clampPriority(t.Priority),
	}
}

// Before reports whether k sorts ahead of o. Equal keys report false.
func (k UrgencyKey) Before(o UrgencyKey) bool {
	if k.Overdue != o.Overdue {
		return k.Overdue
	}
	if k.Overdue {
		if k.Priority != o.Priority {
			return k.Priority < o.Priority
		}
		return k.Left < o.Left
	}
	if k.Left != o.Left {
		return k.Left < o.Left
	}
	return k.Priority < o.Priority
}

// Rank returns the schedulable tasks ordered from most to least urgent.
// Done and blocked tasks are dropped. Equal keys fall back to task id.
func Rank(tasks []Task, now time.Time) []Task {
	ranked := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status.Schedulable() {
			ranked = append(ranked, t)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return moreUrgent(ranked[i], ranked[j], now)
	})
	return ranked
}

func moreUrgent(a, b Task, now time.Time) bool {
	ka, kb := Urgency(a, now), Urgency(b, now)
	if ka.Before(kb) {
		return true
	}
	if kb.Before(ka) {
		return false
	}
	return a.ID < b.ID
}

func clampPriority(p int) int {
	switch {
	case p < 1:
		return 1
	case p > 5:
		return 5
	}
	return p
}
