package bot

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/service"
)

const (
	iconDefault = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"
	iconBlocked = "⛔"
	iconDoing   = "🔄"
)

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func courseLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "📁 No course"
	}
	return "🎓 " + escape(normalizeTitle(name))
}

// formatTask renders one task line of the /tasks list.
func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	due := task.DueAt.In(now.Location())
	icon := iconDefault
	switch {
	case task.Status == string(planner.StatusBlocked):
		icon = iconBlocked
	case now.After(due):
		icon = iconOverdue
	case due.Sub(now) <= 48*time.Hour:
		icon = iconDue
	case task.Status == string(planner.StatusDoing):
		icon = iconDoing
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s <i>[%s, P%d]</i>\n", icon, task.ID, escape(normalizeTitle(task.Title)), task.Type, task.Priority))
	if now.After(due) {
		b.WriteString(fmt.Sprintf("   ⏰ due %s, <b>overdue</b>\n", due.Format("2006-01-02 15:04")))
	} else {
		b.WriteString(fmt.Sprintf("   ⏰ due %s · %s left\n", due.Format("2006-01-02 15:04"), leftLabel(due.Sub(now))))
	}

	planned, done := 0, 0
	for _, s := range task.Slots {
		if s.Kind != string(planner.SlotWork) {
			continue
		}
		planned++
		if s.Done {
			done++
		}
	}
	b.WriteString(fmt.Sprintf("   🍅 %d min estimated · %d/%d sessions done\n", task.EstMins, done, planned))
	if task.Notes != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Notes)))
	}
	b.WriteByte('\n')
	return b.String()
}

// groupByCourse keeps task order inside a course and sorts courses by name,
// tasks without a course last.
func groupByCourse(tasks []model.Task) ([]string, map[string][]model.Task) {
	groups := make(map[string][]model.Task)
	var order []string
	for _, t := range tasks {
		name := strings.TrimSpace(t.CourseName())
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], t)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i] == "" {
			return false
		}
		if order[j] == "" {
			return true
		}
		return strings.ToLower(order[i]) < strings.ToLower(order[j])
	})
	return order, groups
}

func formatWeek(plan planner.WeeklyPlan, titles map[uint]string, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🗓 <b>Weekly plan</b>\n")
	for _, day := range plan.Days {
		b.WriteString(fmt.Sprintf("\n<b>%s</b>", day.Date.Format("Mon 02 Jan")))
		if mins := day.WorkMinutes(); mins > 0 {
			b.WriteString(fmt.Sprintf(" · %s", minutesLabel(mins)))
		}
		b.WriteByte('\n')
		work := 0
		for _, s := range day.Slots {
			if s.Kind != planner.SlotWork {
				continue
			}
			work++
			mark := "▫️"
			if s.Done {
				mark = "✅"
			}
			b.WriteString(fmt.Sprintf("%s %s–%s %s\n", mark,
				s.Start.In(loc).Format("15:04"), s.End.In(loc).Format("15:04"),
				escape(shortTitle(titles[s.TaskID], 32))))
		}
		if work == 0 {
			b.WriteString("— free\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func formatPlanResult(res planner.ReplanResult, titles map[uint]string) string {
	var b strings.Builder
	if len(res.Plans) == 0 {
		b.WriteString("👌 Plan is already up to date.")
	} else {
		b.WriteString(fmt.Sprintf("🗓 <b>Plan updated</b> for %d task(s).", len(res.Plans)))
	}
	if n := countWork(res.Missed); n > 0 {
		b.WriteString(fmt.Sprintf("\n♻️ %d missed session(s) moved.", n))
	}

	ids := make([]uint, 0, len(res.Outcomes))
	for id := range res.Outcomes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		short, ok := planner.Shortfall(res.Outcomes[id])
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("\n⚠️ <b>#%d</b> %s: %d of %d sessions placed (%s)",
			id, escape(shortTitle(titles[id], 32)), short.Sessions, short.Needed, reasonLabel(short.Reason)))
	}
	return b.String()
}

func formatToday(sessions []planner.TaskSessions, now time.Time) string {
	if len(sessions) == 0 {
		return "☀️ Nothing planned for today. Use /plan to build a plan."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("☀️ <b>Today</b> · %s\n", now.Format("Mon 02 Jan")))
	for _, ts := range sessions {
		b.WriteString(fmt.Sprintf("\n<b>#%d</b> %s\n", ts.Task.ID, escape(normalizeTitle(ts.Task.Title))))
		for _, s := range ts.Slots {
			if s.Kind != planner.SlotWork {
				continue
			}
			mark := "▫️"
			switch {
			case s.Done:
				mark = "✅"
			case s.End.Before(now):
				mark = "❌"
			case !s.Start.After(now):
				mark = "▶️"
			}
			b.WriteString(fmt.Sprintf("%s %s–%s\n", mark, s.Start.In(now.Location()).Format("15:04"), s.End.In(now.Location()).Format("15:04")))
		}
	}
	return strings.TrimSpace(b.String())
}

// todayKeyboard offers done and skip buttons for every open work slot.
func todayKeyboard(sessions []planner.TaskSessions, loc *time.Location) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ts := range sessions {
		for _, s := range ts.Slots {
			if s.Kind != planner.SlotWork || s.Done {
				continue
			}
			label := fmt.Sprintf("%s #%d", s.Start.In(loc).Format("15:04"), ts.Task.ID)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+label, slotCallback(cbSlotDonePrefix, ts.Task.ID, s.ID)),
				tgbotapi.NewInlineKeyboardButtonData("⏭ skip", slotCallback(cbSlotSkipPrefix, ts.Task.ID, s.ID)),
			))
		}
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func formatDeadlines(d planner.Deadlines, now time.Time) string {
	var b strings.Builder
	b.WriteString("⏰ <b>Deadlines</b>\n")
	section := func(title string, tasks []planner.Task) {
		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n", title))
		if len(tasks) == 0 {
			b.WriteString("— none\n")
			return
		}
		for _, t := range tasks {
			due := t.DueAt.In(now.Location())
			left := "overdue"
			if due.After(now) {
				left = leftLabel(due.Sub(now)) + " left"
			}
			b.WriteString(fmt.Sprintf("• <b>#%d</b> %s · %s (%s)\n", t.ID, escape(normalizeTitle(t.Title)), due.Format("Mon 15:04"), left))
		}
	}
	section("🔥 Urgent", d.Urgent)
	section("⚠️ At risk", d.AtRisk)
	section("📅 Upcoming", d.Upcoming)
	return strings.TrimSpace(b.String())
}

func formatStats(st planner.Stats) string {
	return fmt.Sprintf("📊 <b>Statistics</b>\n"+
		"• Tasks: %d done of %d\n"+
		"• Planned: %s\n"+
		"• Worked: %s\n"+
		"• On time: %.0f%%\n"+
		"• Estimate accuracy: %.2f",
		st.CompletedTasks, st.TotalTasks,
		minutesLabel(st.TotalPlannedMinutes),
		minutesLabel(st.CompletedMinutes),
		st.OnTimeRatio*100,
		st.EstimateAccuracy,
	)
}

func formatPolicy(p planner.Policy) string {
	cram := "off"
	if p.Cram {
		cram = "on"
	}
	return fmt.Sprintf("⚙️ <b>Study policy</b>\n"+
		"• Session: %d min\n"+
		"• Break: %d min\n"+
		"• Daily cap: %s\n"+
		"• Cram mode: %s\n\n"+
		"Change with <code>/policy pomodoro=50 break=10 max=180 cram=on</code>",
		p.PomodoroMins, p.BreakMins, minutesLabel(p.MaxDailyMins), cram)
}

// parsePolicyArgs reads "key=value" pairs into an override. Keys: pomodoro,
// break, max, cram.
func parsePolicyArgs(args string) (planner.PolicyOverride, error) {
	var o planner.PolicyOverride
	for _, field := range strings.Fields(args) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return o, fmt.Errorf("expected key=value, got %q", field)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "pomodoro", "session":
			n, err := strconv.Atoi(value)
			if err != nil {
				return o, fmt.Errorf("%s must be a number", key)
			}
			o.PomodoroMins = &n
		case "break":
			n, err := strconv.Atoi(value)
			if err != nil {
				return o, fmt.Errorf("%s must be a number", key)
			}
			o.BreakMins = &n
		case "max", "daily":
			n, err := strconv.Atoi(value)
			if err != nil {
				return o, fmt.Errorf("%s must be a number", key)
			}
			o.MaxDailyMins = &n
		case "cram":
			var on bool
			switch strings.ToLower(value) {
			case "on", "yes", "true", "1":
				on = true
			case "off", "no", "false", "0":
				on = false
			default:
				return o, fmt.Errorf("cram must be on or off")
			}
			o.Cram = &on
		default:
			return o, fmt.Errorf("unknown setting %q", key)
		}
	}
	return o, nil
}

// parseEditArgs reads "<id> key=value ..." for /edit. A word without "=" is
// appended to the previous value, so titles and due times may contain spaces.
func parseEditArgs(args string, loc *time.Location) (uint, service.TaskPatch, error) {
	var patch service.TaskPatch
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, patch, fmt.Errorf("missing task ID")
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, patch, fmt.Errorf("task ID must be a number")
	}

	var keys, values []string
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			if len(keys) == 0 {
				return 0, patch, fmt.Errorf("expected key=value, got %q", field)
			}
			values[len(values)-1] += " " + field
			continue
		}
		keys = append(keys, strings.ToLower(key))
		values = append(values, value)
	}
	if len(keys) == 0 {
		return 0, patch, fmt.Errorf("nothing to change")
	}

	for i, key := range keys {
		value := strings.TrimSpace(values[i])
		switch key {
		case "title":
			patch.Title = &value
		case "course":
			patch.Course = &value
		case "notes":
			patch.Notes = &value
		case "est", "estimate":
			mins, err := parseEstimate(value)
			if err != nil {
				return 0, patch, err
			}
			patch.EstMins = &mins
		case "due":
			due, err := parseDue(value, loc)
			if err != nil {
				return 0, patch, fmt.Errorf("due must look like 2025-06-20 or 2025-06-20 18:30")
			}
			patch.DueAt = &due
		case "prio", "priority":
			p, err := strconv.Atoi(value)
			if err != nil {
				return 0, patch, fmt.Errorf("%s must be a number", key)
			}
			patch.Priority = &p
		default:
			return 0, patch, fmt.Errorf("unknown field %q", key)
		}
	}
	return uint(id), patch, nil
}

// parseDue accepts "2006-01-02 15:04" or a bare date, which means the end
// of that day.
func parseDue(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.ParseInLocation("2006-01-02 15:04", text, loc); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", text, loc)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(23*time.Hour + 59*time.Minute), nil
}

// parseEstimate accepts minutes ("90") or hours with a suffix ("1.5h").
func parseEstimate(text string) (int, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if strings.HasSuffix(text, "h") {
		hours, err := strconv.ParseFloat(strings.TrimSuffix(text, "h"), 64)
		if err != nil || hours <= 0 {
			return 0, fmt.Errorf("invalid hours %q", text)
		}
		return int(hours*60 + 0.5), nil
	}
	text = strings.TrimSuffix(strings.TrimSuffix(text, "min"), "m")
	mins, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || mins <= 0 {
		return 0, fmt.Errorf("invalid minutes %q", text)
	}
	return mins, nil
}

func slotCallback(prefix string, taskID uint, slotID string) string {
	return fmt.Sprintf("%s%d:%s", prefix, taskID, slotID)
}

func parseSlotCallback(data, prefix string) (uint, string, error) {
	raw := strings.TrimPrefix(data, prefix)
	idPart, slotID, ok := strings.Cut(raw, ":")
	if !ok || slotID == "" {
		return 0, "", fmt.Errorf("malformed slot callback %q", data)
	}
	taskID, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return uint(taskID), slotID, nil
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func reasonLabel(r planner.ShortfallReason) string {
	switch r {
	case planner.ReasonDeadline:
		return "no free time before the deadline"
	case planner.ReasonHorizon:
		return "the week is full"
	case planner.ReasonOverdue:
		return "already overdue"
	default:
		return string(r)
	}
}

func leftLabel(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func minutesLabel(mins int) string {
	if mins < 60 {
		return fmt.Sprintf("%d min", mins)
	}
	if mins%60 == 0 {
		return fmt.Sprintf("%dh", mins/60)
	}
	return fmt.Sprintf("%dh %02dm", mins/60, mins%60)
}

func countWork(slots []planner.Slot) int {
	n := 0
	for _, s := range slots {
		if s.Kind == planner.SlotWork {
			n++
		}
	}
	return n
}
