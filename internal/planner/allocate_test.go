package planner

import (
	"reflect"
	"testing"
	"time"
)

func workSlots(slots []Slot) []Slot {
	var out []Slot
	for _, s := range slots {
		if s.Kind == SlotWork {
			out = append(out, s)
		}
	}
	return out
}

func assertNoOverlap(t *testing.T, slots []Slot) {
	t.Helper()
	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			a, b := slots[i], slots[j]
			if !(!a.End.After(b.Start) || !b.End.After(a.Start)) {
				t.Fatalf("slots overlap: %v-%v and %v-%v", a.Start, a.End, b.Start, b.End)
			}
		}
	}
}

func assertCapacity(t *testing.T, slots []Slot, maxDaily int) {
	t.Helper()
	perDay := map[string]int{}
	for _, s := range slots {
		perDay[s.Start.Format("2006-01-02")] += s.Minutes()
	}
	for day, mins := range perDay {
		if mins > maxDaily {
			t.Errorf("day %s has %d minutes, cap %d", day, mins, maxDaily)
		}
	}
}

func assertDeadlines(t *testing.T, tasks []Task, alloc Allocation) {
	t.Helper()
	for _, task := range tasks {
		for _, s := range alloc.Slots[task.ID] {
			if s.Kind == SlotWork && s.End.After(task.DueAt) {
				t.Errorf("task %d work slot ends %v after due %v", task.ID, s.End, task.DueAt)
			}
		}
	}
}

func TestAllocateScenarioA(t *testing.T) {
	p := DefaultPolicy()
	tk := task(1, 3, 7*24*time.Hour, 90)
	alloc := Allocate([]Task{tk}, p, 7, t0)

	work := workSlots(alloc.Slots[1])
	if len(work) != 4 {
		t.Fatalf("work slots = %d, want 4", len(work))
	}
	for _, s := range work {
		if s.Minutes() != p.PomodoroMins {
			t.Errorf("work slot length %d, want %d", s.Minutes(), p.PomodoroMins)
		}
		if s.Start.Before(t0) {
			t.Errorf("slot starts %v before now", s.Start)
		}
	}
	if !work[0].Start.Equal(t0) {
		t.Errorf("first session starts %v, want %v", work[0].Start, t0)
	}
	if o, ok := alloc.Outcomes[1].(FullyScheduled); !ok || o.Sessions != 4 {
		t.Errorf("outcome = %#v, want FullyScheduled{4}", alloc.Outcomes[1])
	}
	for _, s := range alloc.Slots[1] {
		if s.Kind == SlotBreak && s.Minutes() != p.BreakMins {
			t.Errorf("break length %d, want %d", s.Minutes(), p.BreakMins)
		}
	}
}

func TestAllocateScenarioBPriorityWins(t *testing.T) {
	p, err := Normalize(RawPolicy{MaxDailyMins: intp(50)})
	if err != nil {
		t.Fatal(err)
	}
	tasks := Rank([]Task{
		task(5, 5, 48*time.Hour, 50),
		task(1, 1, 48*time.Hour, 50),
	}, t0)
	alloc := Allocate(tasks, p, 7, t0)

	high := workSlots(alloc.Slots[1])
	low := workSlots(alloc.Slots[5])
	if len(high) == 0 {
		t.Fatal("priority 1 task got no sessions")
	}
	lastHigh := high[len(high)-1].Start
	for _, s := range low {
		if !s.Start.After(lastHigh) {
			t.Errorf("priority 5 session at %v not after priority 1 sessions (last %v)", s.Start, lastHigh)
		}
	}
	assertCapacity(t, alloc.All(), 50)
	assertDeadlines(t, tasks, alloc)
}

func TestAllocateScenarioCTightDeadline(t *testing.T) {
	p := DefaultPolicy()
	tk := task(1, 1, 2*time.Hour, 120)
	alloc := Allocate([]Task{tk}, p, 7, t0)

	short, ok := Shortfall(alloc.Outcomes[1])
	if !ok {
		t.Fatalf("outcome = %#v, want PartiallyScheduled", alloc.Outcomes[1])
	}
	if short.Needed != 5 || short.Sessions >= 5 {
		t.Errorf("shortfall = %+v", short)
	}
	if short.Reason != ReasonDeadline {
		t.Errorf("reason = %q, want %q", short.Reason, ReasonDeadline)
	}
	for _, s := range alloc.Slots[1] {
		if s.End.After(tk.DueAt) {
			t.Errorf("slot %v-%v ends after due %v", s.Start, s.End, tk.DueAt)
		}
	}
	if got := alloc.Insufficient(); !equalIDs(got, []uint{1}) {
		t.Errorf("Insufficient = %v", got)
	}
}

func TestAllocateOverdueTask(t *testing.T) {
	alloc := Allocate([]Task{task(1, 1, -time.Hour, 50)}, DefaultPolicy(), 7, t0)
	short, ok := Shortfall(alloc.Outcomes[1])
	if !ok || short.Reason != ReasonOverdue || short.Sessions != 0 {
		t.Errorf("outcome = %#v", alloc.Outcomes[1])
	}
	if len(alloc.Slots[1]) != 0 {
		t.Errorf("overdue task got %d slots", len(alloc.Slots[1]))
	}
}

func TestAllocateHorizonExhausted(t *testing.T) {
	p, _ := Normalize(RawPolicy{MaxDailyMins: intp(30)})
	alloc := Allocate([]Task{task(1, 1, 30*24*time.Hour, 200)}, p, 2, t0)
	short, ok := Shortfall(alloc.Outcomes[1])
	if !ok || short.Reason != ReasonHorizon {
		t.Fatalf("outcome = %#v", alloc.Outcomes[1])
	}
	if short.Sessions != 2 {
		t.Errorf("sessions = %d, want one per day", short.Sessions)
	}

	none := Allocate([]Task{task(2, 1, 24*time.Hour, 25)}, p, 0, t0)
	if _, ok := Shortfall(none.Outcomes[2]); !ok {
		t.Error("zero horizon should leave the task unscheduled")
	}
}

func TestAllocateContinuesAfterInfeasibleTask(t *testing.T) {
	tasks := Rank([]Task{
		task(1, 1, 30*time.Minute, 120),
		task(2, 2, 72*time.Hour, 50),
	}, t0)
	alloc := Allocate(tasks, DefaultPolicy(), 7, t0)
	if _, ok := alloc.Outcomes[2].(FullyScheduled); !ok {
		t.Errorf("task 2 outcome = %#v, want FullyScheduled", alloc.Outcomes[2])
	}
	assertNoOverlap(t, alloc.All())
}

func TestAllocateProperties(t *testing.T) {
	p, _ := Normalize(RawPolicy{MaxDailyMins: intp(120)})
	var tasks []Task
	for i := 1; i <= 8; i++ {
		tasks = append(tasks, task(uint(i), i%5+1, time.Duration(i*13)*time.Hour, 40+i*15))
	}
	ranked := Rank(tasks, t0)
	alloc := Allocate(ranked, p, 7, t0)

	all := alloc.All()
	if len(all) == 0 {
		t.Fatal("no slots allocated")
	}
	assertNoOverlap(t, all)
	assertCapacity(t, all, p.MaxDailyMins)
	assertDeadlines(t, ranked, alloc)
	for i := 1; i < len(all); i++ {
		if all[i].Start.Before(all[i-1].Start) {
			t.Fatal("All() not sorted by start")
		}
	}
	for id, slots := range alloc.Slots {
		for _, s := range slots {
			if s.TaskID != id {
				t.Errorf("slot of task %d listed under %d", s.TaskID, id)
			}
			if !s.End.After(s.Start) {
				t.Errorf("empty slot %v", s)
			}
		}
	}
}

func TestAllocateDeterministic(t *testing.T) {
	tasks := Rank([]Task{
		task(1, 2, 30*time.Hour, 100),
		task(2, 1, 50*time.Hour, 75),
		task(3, 4, 90*time.Hour, 160),
	}, t0)
	a := Allocate(tasks, DefaultPolicy(), 7, t0)
	b := Allocate(tasks, DefaultPolicy(), 7, t0)
	if !reflect.DeepEqual(a, b) {
		t.Error("Allocate is not deterministic")
	}
}

func TestAllocateCramSkipsBreaks(t *testing.T) {
	relaxed, _ := Normalize(RawPolicy{MaxDailyMins: intp(50)})
	cram, _ := Normalize(RawPolicy{MaxDailyMins: intp(50), Cram: boolp(true)})
	tk := task(1, 1, 7*24*time.Hour, 50)

	normal := Allocate([]Task{tk}, relaxed, 7, t0)
	dense := Allocate([]Task{tk}, cram, 7, t0)

	day0 := func(slots []Slot) int {
		n := 0
		for _, s := range slots {
			if s.Kind == SlotWork && s.Start.YearDay() == t0.YearDay() {
				n++
			}
		}
		return n
	}
	if got := day0(normal.Slots[1]); got != 1 {
		t.Errorf("without cram day 0 has %d sessions, want 1", got)
	}
	if got := day0(dense.Slots[1]); got != 2 {
		t.Errorf("with cram day 0 has %d sessions, want 2", got)
	}
	for _, s := range dense.Slots[1] {
		if s.Kind == SlotBreak {
			t.Errorf("cram plan kept a break at %v", s.Start)
		}
	}
	assertCapacity(t, dense.Slots[1], 50)
}

func TestAllocateAvoidsReserved(t *testing.T) {
	busy := Slot{ID: "busy", TaskID: 9, Start: t0, End: t0.Add(time.Hour), Kind: SlotWork}
	alloc := Allocate([]Task{task(1, 1, 48*time.Hour, 25)}, DefaultPolicy(), 7, t0, WithReserved([]Slot{busy}))

	work := workSlots(alloc.Slots[1])
	if len(work) != 1 {
		t.Fatalf("work slots = %d", len(work))
	}
	if want := t0.Add(time.Hour); !work[0].Start.Equal(want) {
		t.Errorf("session starts %v, want %v", work[0].Start, want)
	}
}

func TestAllocateReservedConsumesCapacity(t *testing.T) {
	p, _ := Normalize(RawPolicy{MaxDailyMins: intp(60)})
	done := Slot{ID: "d", TaskID: 9, Start: t0.Add(-2 * time.Hour), End: t0.Add(-time.Hour), Kind: SlotWork, Done: true}
	alloc := Allocate([]Task{task(1, 1, 7*24*time.Hour, 25)}, p, 7, t0, WithReserved([]Slot{done}))

	work := workSlots(alloc.Slots[1])
	if len(work) != 1 {
		t.Fatalf("work slots = %d", len(work))
	}
	if work[0].Start.YearDay() == t0.YearDay() {
		t.Error("session placed on a day whose capacity was used up")
	}
}

func TestAllocateRespectsWindow(t *testing.T) {
	late := time.Date(2025, 6, 16, 21, 50, 0, 0, time.UTC)
	tk := Task{ID: 1, EstMins: 25, DueAt: late.Add(72 * time.Hour), Priority: 1, Status: StatusTodo}
	alloc := Allocate([]Task{tk}, DefaultPolicy(), 7, late, WithWindow(Window{Start: 9 * time.Hour, End: 22 * time.Hour}))

	work := workSlots(alloc.Slots[1])
	if len(work) != 1 {
		t.Fatalf("work slots = %d", len(work))
	}
	want := time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)
	if !work[0].Start.Equal(want) {
		t.Errorf("session starts %v, want %v", work[0].Start, want)
	}
}

func TestSlotIDStable(t *testing.T) {
	a := SlotID(1, SlotWork, t0)
	if a != SlotID(1, SlotWork, t0) {
		t.Error("SlotID not stable")
	}
	if a == SlotID(1, SlotBreak, t0) || a == SlotID(2, SlotWork, t0) || a == SlotID(1, SlotWork, t0.Add(time.Minute)) {
		t.Error("SlotID collides for different inputs")
	}
}

func TestAllocateWindowKeepsLocalHoursAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks jump from 02:00 to 03:00 on this day.
	now := time.Date(2025, 3, 9, 0, 30, 0, 0, loc)
	tk := Task{ID: 1, EstMins: 50, DueAt: now.Add(72 * time.Hour), Priority: 3, Status: StatusTodo}
	w := Window{Start: 8 * time.Hour, End: 22 * time.Hour}

	alloc := Allocate([]Task{tk}, DefaultPolicy(), 3, now, WithWindow(w))
	work := workSlots(alloc.Slots[1])
	if len(work) == 0 {
		t.Fatal("no work slots")
	}
	if h, m, _ := work[0].Start.In(loc).Clock(); h != 8 || m != 0 {
		t.Errorf("first session at %02d:%02d local, want 08:00", h, m)
	}
}
