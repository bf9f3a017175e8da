package planner

import (
	"math"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	future := func(tk Task) Task {
		tk.Slots = []Slot{slotAt("f", tk.ID, t0.Add(time.Hour), 25, SlotWork)}
		return tk
	}
	done := task(9, 1, 2*time.Hour, 25)
	done.Status = StatusDone
	blocked := task(10, 1, 2*time.Hour, 25)
	blocked.Status = StatusBlocked

	tasks := []Task{
		task(1, 1, -5*time.Hour, 25),         // overdue -> urgent
		task(2, 1, 23*time.Hour, 25),         // urgent
		task(3, 1, 30*time.Hour, 25),         // no future work -> at risk
		future(task(4, 1, 30*time.Hour, 25)), // planned, not yet upcoming -> none
		task(5, 1, 100*time.Hour, 25),        // upcoming
		task(6, 1, 200*time.Hour, 25),        // beyond a week -> none
		future(task(7, 1, 80*time.Hour, 25)), // upcoming
		done,
		blocked,
	}
	d := Classify(tasks, t0)

	if got := ids(d.Urgent); !equalIDs(got, []uint{1, 2}) {
		t.Errorf("urgent = %v", got)
	}
	if got := ids(d.AtRisk); !equalIDs(got, []uint{3}) {
		t.Errorf("at risk = %v", got)
	}
	if got := ids(d.Upcoming); !equalIDs(got, []uint{5, 7}) {
		t.Errorf("upcoming = %v", got)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		hours  time.Duration
		bucket string
	}{
		{24, "atRisk"},
		{72, "upcoming"},
		{168, ""},
	}
	for _, tc := range cases {
		d := Classify([]Task{task(1, 1, tc.hours*time.Hour, 25)}, t0)
		got := ""
		switch {
		case len(d.Urgent) == 1:
			got = "urgent"
		case len(d.AtRisk) == 1:
			got = "atRisk"
		case len(d.Upcoming) == 1:
			got = "upcoming"
		}
		if got != tc.bucket {
			t.Errorf("%dh: bucket %q, want %q", tc.hours, got, tc.bucket)
		}
	}
}

func TestEstimateAccuracy(t *testing.T) {
	mk := func(est, spent int, status Status) Task {
		return Task{EstMins: est, MinutesSpent: spent, Status: status}
	}
	if got := EstimateAccuracy(nil); got != 1.0 {
		t.Errorf("empty accuracy = %v, want 1", got)
	}
	if got := EstimateAccuracy([]Task{mk(60, 0, StatusDone), mk(60, 30, StatusTodo)}); got != 1.0 {
		t.Errorf("no valid metric accuracy = %v, want 1", got)
	}
	got := EstimateAccuracy([]Task{
		mk(100, 25, StatusDone), // 4.0 capped to 2.0
		mk(30, 60, StatusDone),  // 0.5
	})
	if math.Abs(got-1.25) > 1e-9 {
		t.Errorf("accuracy = %v, want 1.25", got)
	}
}

func TestComputeStats(t *testing.T) {
	onTime := t0.Add(time.Hour)
	late := t0.Add(48 * time.Hour)

	a := task(1, 1, 24*time.Hour, 50)
	a.Status = StatusDone
	a.CompletedAt = &onTime
	a.MinutesSpent = 50
	a.Slots = []Slot{
		{ID: "1", TaskID: 1, Start: t0, End: t0.Add(25 * time.Minute), Kind: SlotWork, Done: true},
		{ID: "2", TaskID: 1, Start: t0.Add(25 * time.Minute), End: t0.Add(30 * time.Minute), Kind: SlotBreak, Done: true},
	}
	b := task(2, 1, 24*time.Hour, 50)
	b.Status = StatusDone
	b.CompletedAt = &late
	c := task(3, 1, 24*time.Hour, 50)
	c.Slots = []Slot{{ID: "3", TaskID: 3, Start: t0.Add(time.Hour), End: t0.Add(85 * time.Minute), Kind: SlotWork}}

	st := ComputeStats([]Task{a, b, c})
	if st.TotalTasks != 3 || st.CompletedTasks != 2 {
		t.Errorf("counts = %+v", st)
	}
	if st.TotalPlannedMinutes != 50 || st.CompletedMinutes != 25 {
		t.Errorf("minutes = %+v", st)
	}
	if st.OnTimeRatio != 0.5 {
		t.Errorf("on time ratio = %v", st.OnTimeRatio)
	}
	if st.EstimateAccuracy != 1.0 {
		t.Errorf("accuracy = %v", st.EstimateAccuracy)
	}
}
