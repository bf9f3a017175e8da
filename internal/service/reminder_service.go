package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"study-planner/internal/planner"
)

// ReminderService builds human-readable summaries for periodic reports.
type ReminderService struct {
	planner *PlannerService
}

func NewReminderService(p *PlannerService) *ReminderService {
	return &ReminderService{planner: p}
}

// DailySummary renders today's sessions and the deadlines that need
// attention as Telegram HTML.
func (s *ReminderService) DailySummary(ctx context.Context, userID uint) (string, error) {
	dash, err := s.planner.Dashboard(ctx, userID)
	if err != nil {
		return "", err
	}
	now := dash.Now

	var builder strings.Builder
	builder.WriteString("📋 <b>Study report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon 02 Jan 2006")))

	builder.WriteString("🍅 <b>Today's sessions</b>\n")
	if len(dash.Today) == 0 {
		builder.WriteString("— nothing planned for today\n")
	} else {
		for _, ts := range dash.Today {
			builder.WriteString(formatSessions(ts, now))
		}
	}

	builder.WriteString("\n⏰ <b>Deadlines</b>\n")
	if len(dash.Deadlines.Urgent)+len(dash.Deadlines.AtRisk) == 0 {
		builder.WriteString("— nothing urgent\n")
	} else {
		for _, t := range dash.Deadlines.Urgent {
			builder.WriteString(formatDeadline("🔥", t, now))
		}
		for _, t := range dash.Deadlines.AtRisk {
			builder.WriteString(formatDeadline("⚠️", t, now))
		}
	}

	st := dash.Stats
	builder.WriteString(fmt.Sprintf("\n📊 %d/%d tasks done · %d/%d planned minutes worked",
		st.CompletedTasks, st.TotalTasks, st.CompletedMinutes, st.TotalPlannedMinutes))

	return strings.TrimSpace(builder.String()), nil
}

func formatSessions(ts planner.TaskSessions, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("• %s", taskLabel(ts.Task)))
	for _, slot := range ts.Slots {
		if slot.Kind != planner.SlotWork {
			continue
		}
		mark := "▫️"
		switch {
		case slot.Done:
			mark = "✅"
		case slot.End.Before(now):
			mark = "❌"
		}
		sb.WriteString(fmt.Sprintf("\n   %s %s–%s", mark,
			slot.Start.In(now.Location()).Format("15:04"),
			slot.End.In(now.Location()).Format("15:04")))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatDeadline(icon string, t planner.Task, now time.Time) string {
	due := t.DueAt.In(now.Location())
	if now.After(due) {
		return fmt.Sprintf("%s %s\n   due %s, <b>overdue</b>\n", icon, taskLabel(t), due.Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("%s %s\n   due %s, %s left\n", icon, taskLabel(t), due.Format("2006-01-02 15:04"), humanDuration(due.Sub(now)))
}

func taskLabel(t planner.Task) string {
	label := html.EscapeString(strings.TrimSpace(t.Title))
	if course := strings.TrimSpace(t.Course); course != "" {
		label += fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(course))
	}
	return label
}

func humanDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 48*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
