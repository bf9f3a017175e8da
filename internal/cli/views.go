package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/planner"
)

type slotView struct {
	ID     string    `json:"id"`
	TaskID uint      `json:"taskId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Kind   string    `json:"kind"`
	Done   bool      `json:"done,omitempty"`
}

type dayView struct {
	Date  string     `json:"date"`
	Slots []slotView `json:"slots"`
}

type taskView struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	Course   string    `json:"course,omitempty"`
	Status   string    `json:"status"`
	EstMins  int       `json:"estimatedMinutes"`
	Priority int       `json:"priority"`
	DueAt    time.Time `json:"dueAt"`
}

type deadlinesView struct {
	Urgent   []taskView `json:"urgent"`
	AtRisk   []taskView `json:"atRisk"`
	Upcoming []taskView `json:"upcoming"`
}

type outcomeView struct {
	TaskID   uint   `json:"taskId"`
	Sessions int    `json:"sessions"`
	Needed   int    `json:"needed,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type replanView struct {
	Changed  []uint        `json:"changed"`
	Missed   int           `json:"missed"`
	Outcomes []outcomeView `json:"outcomes"`
	Slots    []slotView    `json:"slots,omitempty"`
}

func toSlotViews(slots []planner.Slot, loc *time.Location) []slotView {
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{
			ID:     s.ID,
			TaskID: s.TaskID,
			Start:  s.Start.In(loc),
			End:    s.End.In(loc),
			Kind:   string(s.Kind),
			Done:   s.Done,
		})
	}
	return out
}

func toWeekView(plan planner.WeeklyPlan, loc *time.Location) []dayView {
	out := make([]dayView, 0, len(plan.Days))
	for _, d := range plan.Days {
		out = append(out, dayView{
			Date:  d.Date.In(loc).Format("2006-01-02"),
			Slots: toSlotViews(d.Slots, loc),
		})
	}
	return out
}

func toTaskViews(tasks []planner.Task) []taskView {
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskView{
			ID:       t.ID,
			Title:    t.Title,
			Course:   t.Course,
			Status:   string(t.Status),
			EstMins:  t.EstMins,
			Priority: t.Priority,
			DueAt:    t.DueAt,
		})
	}
	return out
}

func toTaskView(t model.Task) taskView {
	return taskView{
		ID:       t.ID,
		Title:    t.Title,
		Course:   t.CourseName(),
		Status:   t.Status,
		EstMins:  t.EstMins,
		Priority: t.Priority,
		DueAt:    t.DueAt,
	}
}

func toReplanView(res planner.ReplanResult, loc *time.Location) replanView {
	v := replanView{
		Changed: append([]uint{}, res.Changed...),
		Missed:  len(res.Missed),
		Slots:   toSlotViews(res.Slots, loc),
	}
	for id, o := range res.Outcomes {
		ov := outcomeView{TaskID: id}
		switch o := o.(type) {
		case planner.FullyScheduled:
			ov.Sessions = o.Sessions
		case planner.PartiallyScheduled:
			ov.Sessions = o.Sessions
			ov.Needed = o.Needed
			ov.Reason = string(o.Reason)
		}
		v.Outcomes = append(v.Outcomes, ov)
	}
	sort.Slice(v.Outcomes, func(i, j int) bool { return v.Outcomes[i].TaskID < v.Outcomes[j].TaskID })
	return v
}

func writeWeek(w io.Writer, days []dayView) {
	for _, d := range days {
		if len(d.Slots) == 0 {
			fmt.Fprintf(w, "%s  free\n", d.Date)
			continue
		}
		fmt.Fprintf(w, "%s\n", d.Date)
		for _, s := range d.Slots {
			mark := " "
			if s.Done {
				mark = "x"
			}
			fmt.Fprintf(w, "  [%s] %s-%s  %-5s  task #%d\n", mark, s.Start.Format("15:04"), s.End.Format("15:04"), s.Kind, s.TaskID)
		}
	}
}

func writeDeadlines(w io.Writer, v deadlinesView) {
	groups := []struct {
		name  string
		tasks []taskView
	}{
		{"urgent", v.Urgent},
		{"at risk", v.AtRisk},
		{"upcoming", v.Upcoming},
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%d)\n", g.name, len(g.tasks))
		for _, t := range g.tasks {
			fmt.Fprintf(w, "  #%d %s  due %s\n", t.ID, t.Title, t.DueAt.Format("2006-01-02 15:04"))
		}
	}
}

func writeReplan(w io.Writer, v replanView) {
	fmt.Fprintf(w, "changed: %s\n", joinIDs(v.Changed))
	fmt.Fprintf(w, "missed sessions recovered: %d\n", v.Missed)
	for _, o := range v.Outcomes {
		if o.Needed == 0 {
			fmt.Fprintf(w, "  #%d  %d session(s)\n", o.TaskID, o.Sessions)
			continue
		}
		fmt.Fprintf(w, "  #%d  %d of %d session(s), short by %s\n", o.TaskID, o.Sessions, o.Needed, o.Reason)
	}
}

func writeStats(w io.Writer, s planner.Stats) {
	fmt.Fprintf(w, "tasks:             %d/%d done\n", s.CompletedTasks, s.TotalTasks)
	fmt.Fprintf(w, "planned minutes:   %d\n", s.TotalPlannedMinutes)
	fmt.Fprintf(w, "completed minutes: %d\n", s.CompletedMinutes)
	fmt.Fprintf(w, "on time:           %.0f%%\n", s.OnTimeRatio*100)
	fmt.Fprintf(w, "estimate accuracy: %.2f\n", s.EstimateAccuracy)
}

func writePolicy(w io.Writer, p planner.Policy) {
	cram := "off"
	if p.Cram {
		cram = "on"
	}
	fmt.Fprintf(w, "pomodoro=%d break=%d max=%d cram=%s\n", p.PomodoroMins, p.BreakMins, p.MaxDailyMins, cram)
}

func joinIDs(ids []uint) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
