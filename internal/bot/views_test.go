package bot

import (
	"strings"
	"testing"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/service"
)

var now = time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

func TestParsePolicyArgs(t *testing.T) {
	o, err := parsePolicyArgs("pomodoro=50 break=10 max=180 cram=on")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *o.PomodoroMins != 50 || *o.BreakMins != 10 || *o.MaxDailyMins != 180 || !*o.Cram {
		t.Errorf("override = %+v", o)
	}

	empty, err := parsePolicyArgs("")
	if err != nil || empty.PomodoroMins != nil || empty.Cram != nil {
		t.Errorf("empty args = %+v, %v", empty, err)
	}

	for _, bad := range []string{"pomodoro", "pomodoro=abc", "cram=maybe", "colour=blue"} {
		if _, err := parsePolicyArgs(bad); err == nil {
			t.Errorf("parsePolicyArgs(%q) should fail", bad)
		}
	}
}

func TestParseDue(t *testing.T) {
	got, err := parseDue("2025-06-20 18:30", time.UTC)
	if err != nil || !got.Equal(time.Date(2025, 6, 20, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("with time = %v, %v", got, err)
	}
	got, err = parseDue("2025-06-20", time.UTC)
	if err != nil || !got.Equal(time.Date(2025, 6, 20, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("date only = %v, %v", got, err)
	}
	if _, err := parseDue("next friday", time.UTC); err == nil {
		t.Error("free text accepted")
	}
}

func TestParseEditArgs(t *testing.T) {
	id, patch, err := parseEditArgs("12 due=2025-06-20 18:30 est=1.5h prio=2 title=Lab report draft", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != 12 {
		t.Errorf("id = %d", id)
	}
	if patch.DueAt == nil || !patch.DueAt.Equal(time.Date(2025, 6, 20, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("due = %v", patch.DueAt)
	}
	if patch.EstMins == nil || *patch.EstMins != 90 {
		t.Errorf("est = %v", patch.EstMins)
	}
	if patch.Priority == nil || *patch.Priority != 2 {
		t.Errorf("prio = %v", patch.Priority)
	}
	if patch.Title == nil || *patch.Title != "Lab report draft" {
		t.Errorf("title = %v", patch.Title)
	}
	if patch.Course != nil || patch.Status != nil {
		t.Errorf("unset fields leaked into patch: %+v", patch)
	}
	if !patch.AffectsPlan() {
		t.Error("due and estimate changes should replan")
	}

	_, rename, err := parseEditArgs("3 title=Reading", time.UTC)
	if err != nil || rename.AffectsPlan() {
		t.Errorf("title-only edit = %+v, %v", rename, err)
	}

	for _, bad := range []string{"", "abc due=2025-06-20", "5", "5 reading", "5 due=tomorrow", "5 est=0", "5 prio=high", "5 colour=blue"} {
		if _, _, err := parseEditArgs(bad, time.UTC); err == nil {
			t.Errorf("parseEditArgs(%q) should fail", bad)
		}
	}
}

func TestParseEstimate(t *testing.T) {
	cases := map[string]int{"90": 90, "45m": 45, "30 min": 30, "1.5h": 90, "2H": 120}
	for in, want := range cases {
		got, err := parseEstimate(in)
		if err != nil || got != want {
			t.Errorf("parseEstimate(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"0", "-5", "soon", "0h"} {
		if _, err := parseEstimate(bad); err == nil {
			t.Errorf("parseEstimate(%q) should fail", bad)
		}
	}
}

func TestSlotCallbackRoundTrip(t *testing.T) {
	slotID := planner.SlotID(12, planner.SlotWork, now)
	data := slotCallback(cbSlotDonePrefix, 12, slotID)
	if len(data) > 64 {
		t.Errorf("callback data too long for Telegram: %d bytes", len(data))
	}
	taskID, gotSlot, err := parseSlotCallback(data, cbSlotDonePrefix)
	if err != nil || taskID != 12 || gotSlot != slotID {
		t.Errorf("parsed = %d %q %v", taskID, gotSlot, err)
	}
	if _, _, err := parseSlotCallback(cbSlotDonePrefix+"12", cbSlotDonePrefix); err == nil {
		t.Error("missing slot id accepted")
	}
}

func TestFormatPlanResultReportsShortfall(t *testing.T) {
	res := planner.ReplanResult{
		Plans: map[uint][]planner.Slot{1: nil, 2: nil},
		Outcomes: map[uint]planner.Outcome{
			1: planner.FullyScheduled{Sessions: 2},
			2: planner.PartiallyScheduled{Sessions: 1, Needed: 4, Reason: planner.ReasonDeadline},
		},
		Missed: []planner.Slot{{Kind: planner.SlotWork}, {Kind: planner.SlotBreak}},
	}
	text := formatPlanResult(res, map[uint]string{1: "essay", 2: "lab <report>"})
	for _, want := range []string{"2 task(s)", "1 missed session", "#2", "1 of 4", "lab &lt;report&gt;", "deadline"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
	if strings.Contains(text, "#1") {
		t.Errorf("fully scheduled task reported: %q", text)
	}
}

func TestFormatWeekMarksFreeDays(t *testing.T) {
	slot := planner.Slot{ID: "s", TaskID: 1, Start: now, End: now.Add(25 * time.Minute), Kind: planner.SlotWork}
	plan := planner.Aggregate([]planner.Task{{ID: 1, Status: planner.StatusTodo, Slots: []planner.Slot{slot}}}, 2, now)
	text := formatWeek(plan, map[uint]string{1: "reading"}, time.UTC)
	if !strings.Contains(text, "09:00–09:25 Reading") {
		t.Errorf("slot line missing: %q", text)
	}
	if !strings.Contains(text, "— free") {
		t.Errorf("free day missing: %q", text)
	}
}

func TestTodayKeyboard(t *testing.T) {
	open := planner.Slot{ID: "a", TaskID: 3, Start: now, End: now.Add(25 * time.Minute), Kind: planner.SlotWork}
	done := planner.Slot{ID: "b", TaskID: 3, Start: now.Add(time.Hour), End: now.Add(85 * time.Minute), Kind: planner.SlotWork, Done: true}
	brk := planner.Slot{ID: "c", TaskID: 3, Start: now.Add(25 * time.Minute), End: now.Add(30 * time.Minute), Kind: planner.SlotBreak}
	sessions := []planner.TaskSessions{{Task: planner.Task{ID: 3}, Slots: []planner.Slot{open, brk, done}}}

	kb, ok := todayKeyboard(sessions, time.UTC)
	if !ok || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("keyboard rows = %d", len(kb.InlineKeyboard))
	}
	if data := *kb.InlineKeyboard[0][1].CallbackData; data != slotCallback(cbSlotSkipPrefix, 3, "a") {
		t.Errorf("skip callback = %q", data)
	}
	if _, ok := todayKeyboard(nil, time.UTC); ok {
		t.Error("keyboard for empty day")
	}
}

func TestGroupByCourse(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Course: &model.Course{Name: "physics"}},
		{ID: 2},
		{ID: 3, Course: &model.Course{Name: "Art"}},
		{ID: 4, Course: &model.Course{Name: "physics"}},
	}
	order, groups := groupByCourse(tasks)
	if strings.Join(order, ",") != "Art,physics," {
		t.Errorf("order = %q", order)
	}
	if len(groups["physics"]) != 2 || groups["physics"][1].ID != 4 {
		t.Errorf("physics group = %+v", groups["physics"])
	}
}

func TestFormatEvent(t *testing.T) {
	text := formatEvent(service.Event{Type: service.EventPlanUpdate, Missed: 2, Insufficient: []uint{4, 9}})
	if !strings.Contains(text, "2 missed") || !strings.Contains(text, "#4, #9") {
		t.Errorf("event text = %q", text)
	}
}

func TestMinutesLabel(t *testing.T) {
	cases := map[int]string{25: "25 min", 60: "1h", 95: "1h 35m", 240: "4h"}
	for in, want := range cases {
		if got := minutesLabel(in); got != want {
			t.Errorf("minutesLabel(%d) = %q, want %q", in, got, want)
		}
	}
}
