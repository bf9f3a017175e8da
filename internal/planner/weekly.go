package planner

import (
	"sort"
	"time"
)

// Day is one calendar date of a weekly plan.
type Day struct {
	Date  time.Time
	Slots []Slot
}

// WorkMinutes sums the work slots of the day.
func (d Day) WorkMinutes() int {
	total := 0
	for _, s := range d.Slots {
		if s.Kind == SlotWork {
			total += s.Minutes()
		}
	}
	return total
}

// WeeklyPlan is a day-grouped projection of every task's slots.
type WeeklyPlan struct {
	Days []Day
}

// Aggregate groups all slots by their calendar date in now's location. Days
// without slots are included so the plan always spans the whole horizon.
// Slots outside the horizon are left out. The input is not modified.
func Aggregate(tasks []Task, horizonDays int, now time.Time) WeeklyPlan {
	if horizonDays <= 0 {
		return WeeklyPlan{}
	}
	loc := now.Location()
	y, m, d := now.Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, loc)

	days := make([]Day, horizonDays)
	for i := range days {
		days[i].Date = time.Date(y, m, d+i, 0, 0, 0, 0, loc)
	}
	end := time.Date(y, m, d+horizonDays, 0, 0, 0, 0, loc)

	for _, t := range tasks {
		for _, s := range t.Slots {
			start := s.Start.In(loc)
			if start.Before(first) || !start.Before(end) {
				continue
			}
			sy, sm, sd := start.Date()
			date := time.Date(sy, sm, sd, 0, 0, 0, 0, loc)
			idx := sort.Search(len(days), func(i int) bool { return !days[i].Date.Before(date) })
			if idx < len(days) && days[idx].Date.Equal(date) {
				days[idx].Slots = append(days[idx].Slots, s)
			}
		}
	}
	for i := range days {
		sortSlots(days[i].Slots)
	}
	return WeeklyPlan{Days: days}
}

// TaskSessions pairs a task with its slots for a single day.
type TaskSessions struct {
	Task  Task
	Slots []Slot
}

// TodaySessions returns, per schedulable task, the slots that start on now's
// calendar day, ordered by the first slot of each task.
func TodaySessions(tasks []Task, now time.Time) []TaskSessions {
	loc := now.Location()
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	var out []TaskSessions
	for _, t := range tasks {
		if !t.Status.Schedulable() {
			continue
		}
		var today []Slot
		for _, s := range t.Slots {
			if !s.Start.Before(start) && s.Start.Before(end) {
				today = append(today, s)
			}
		}
		if len(today) == 0 {
			continue
		}
		sortSlots(today)
		out = append(out, TaskSessions{Task: t, Slots: today})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Slots[0].Start, out[j].Slots[0].Start
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].Task.ID < out[j].Task.ID
	})
	return out
}
