package planner

import "time"

const maxAccuracy = 2.0

// Deadlines partitions schedulable tasks by how close their due time is.
type Deadlines struct {
	Urgent   []Task
	AtRisk   []Task
	Upcoming []Task
}

// Classify buckets todo and doing tasks. Rules are checked in order:
// under 24h is urgent, 24-72h without any slot starting at or after now is
// at risk, 72-168h is upcoming. Everything else is left out.
func Classify(tasks []Task, now time.Time) Deadlines {
	var d Deadlines
	for _, t := range tasks {
		if !t.Status.Schedulable() {
			continue
		}
		hours := t.HoursToDeadline(now)
		switch {
		case hours < 24:
			d.Urgent = append(d.Urgent, t)
		case hours < 72 && !t.HasFutureWork(now):
			d.AtRisk = append(d.AtRisk, t)
		case hours >= 72 && hours < 168:
			d.Upcoming = append(d.Upcoming, t)
		}
	}
	return d
}

// EstimateAccuracy averages min(estimate/actual, 2) over done tasks that
// recorded the minutes actually spent. It is 1 when no task qualifies.
func EstimateAccuracy(tasks []Task) float64 {
	total := 0.0
	n := 0
	for _, t := range tasks {
		if t.Status != StatusDone || t.MinutesSpent <= 0 || t.EstMins <= 0 {
			continue
		}
		acc := float64(t.EstMins) / float64(t.MinutesSpent)
		if acc > maxAccuracy {
			acc = maxAccuracy
		}
		total += acc
		n++
	}
	if n == 0 {
		return 1.0
	}
	return total / float64(n)
}

// Stats summarises a user's planning history.
type Stats struct {
	TotalTasks          int     `json:"totalTasks"`
	CompletedTasks      int     `json:"completedTasks"`
	TotalPlannedMinutes int     `json:"totalPlannedMinutes"`
	CompletedMinutes    int     `json:"completedMinutes"`
	OnTimeRatio         float64 `json:"onTimeRatio"`
	EstimateAccuracy    float64 `json:"averageEstimateAccuracy"`
}

// ComputeStats derives planned and completed minutes from work slots, the
// share of done tasks finished by their due time and the estimate accuracy.
func ComputeStats(tasks []Task) Stats {
	st := Stats{TotalTasks: len(tasks)}
	var done []Task
	onTime := 0
	for _, t := range tasks {
		for _, s := range t.Slots {
			if s.Kind != SlotWork {
				continue
			}
			st.TotalPlannedMinutes += s.Minutes()
			if s.Done {
				st.CompletedMinutes += s.Minutes()
			}
		}
		if t.Status != StatusDone {
			continue
		}
		done = append(done, t)
		if t.CompletedAt != nil && !t.CompletedAt.After(t.DueAt) {
			onTime++
		}
	}
	st.CompletedTasks = len(done)
	if len(done) > 0 {
		st.OnTimeRatio = float64(onTime) / float64(len(done))
	}
	st.EstimateAccuracy = EstimateAccuracy(done)
	return st
}
