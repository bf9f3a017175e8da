package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// slotNamespace seeds deterministic slot identifiers.
var slotNamespace = uuid.MustParse("6f1c2b8e-4a57-4d2e-9a57-1d0f3c9b7e21")

// Window is the part of each calendar day in which sessions may be placed,
// expressed as offsets from local midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// DefaultWindow is 08:00-22:00.
var DefaultWindow = Window{Start: 8 * time.Hour, End: 22 * time.Hour}

// Valid reports whether the window describes a non-empty part of one day.
func (w Window) Valid() bool {
	return w.Start >= 0 && w.End <= 24*time.Hour && w.Start < w.End
}

// ShortfallReason explains why a task could not be fully scheduled.
type ShortfallReason string

const (
	ReasonDeadline ShortfallReason = "deadline"
	ReasonHorizon  ShortfallReason = "horizon"
	ReasonOverdue  ShortfallReason = "overdue"
)

// Outcome is the per-task planning result: FullyScheduled or PartiallyScheduled.
type Outcome interface {
	isOutcome()
}

// FullyScheduled means every needed session was placed.
type FullyScheduled struct {
	Sessions int
}

// PartiallyScheduled means some sessions could not be placed.
type PartiallyScheduled struct {
	Sessions int
	Needed   int
	Reason   ShortfallReason
}

func (FullyScheduled) isOutcome()     {}
func (PartiallyScheduled) isOutcome() {}

// Shortfall unwraps a partial outcome.
func Shortfall(o Outcome) (PartiallyScheduled, bool) {
	p, ok := o.(PartiallyScheduled)
	return p, ok
}

// Allocation is the result of one allocator pass. Order lists task ids in
// the order they were packed.
type Allocation struct {
	Order    []uint
	Slots    map[uint][]Slot
	Outcomes map[uint]Outcome
}

// All returns every allocated slot sorted by start time.
func (a Allocation) All() []Slot {
	var out []Slot
	for _, id := range a.Order {
		out = append(out, a.Slots[id]...)
	}
	sortSlots(out)
	return out
}

// Insufficient lists tasks that were only partially scheduled, in pack order.
func (a Allocation) Insufficient() []uint {
	var ids []uint
	for _, id := range a.Order {
		if _, short := Shortfall(a.Outcomes[id]); short {
			ids = append(ids, id)
		}
	}
	return ids
}

// Option tunes an allocator pass.
type Option func(*allocConfig)

type allocConfig struct {
	window   Window
	reserved []Slot
}

// WithWindow sets the daily working window.
func WithWindow(w Window) Option {
	return func(c *allocConfig) {
		if w.Valid() {
			c.window = w
		}
	}
}

// WithReserved marks existing slots as occupied. They consume daily
// capacity and new sessions are packed around them.
func WithReserved(slots []Slot) Option {
	return func(c *allocConfig) {
		c.reserved = append(c.reserved, slots...)
	}
}

type day struct {
	start     time.Time
	end       time.Time
	cursor    time.Time
	remaining int
	reserved  []Slot
	closed    bool
}

type fitResult int

const (
	fitOK fitResult = iota
	fitWindow
	fitDeadline
)

// fit finds the earliest start at or after the cursor where length fits
// inside the window, before due and clear of reserved slots.
func (d *day) fit(length time.Duration, due time.Time) (time.Time, fitResult) {
	start := d.cursor
	for {
		end := start.Add(length)
		if end.After(d.end) {
			if end.After(due) {
				return time.Time{}, fitDeadline
			}
			return time.Time{}, fitWindow
		}
		if end.After(due) {
			return time.Time{}, fitDeadline
		}
		moved := false
		for _, r := range d.reserved {
			if r.overlaps(start, end) {
				start = r.End
				moved = true
				break
			}
		}
		if !moved {
			return start, fitOK
		}
	}
}

// Allocate packs the ranked tasks into work and break slots over horizonDays
// calendar days starting at now's day. It is deterministic for identical
// inputs and never fails: tasks that cannot be fully placed are reported as
// PartiallyScheduled.
func Allocate(ranked []Task, policy Policy, horizonDays int, now time.Time, opts ...Option) Allocation {
	cfg := allocConfig{window: DefaultWindow}
	for _, opt := range opts {
		opt(&cfg)
	}

	days := buildDays(policy, horizonDays, now, cfg)
	pomo := time.Duration(policy.PomodoroMins) * time.Minute
	brk := time.Duration(policy.BreakMins) * time.Minute

	res := Allocation{
		Order:    make([]uint, 0, len(ranked)),
		Slots:    make(map[uint][]Slot, len(ranked)),
		Outcomes: make(map[uint]Outcome, len(ranked)),
	}
	first := 0

	for _, task := range ranked {
		res.Order = append(res.Order, task.ID)
		needed := policy.SessionsFor(task.EstMins)
		var slots []Slot
		reason := ReasonHorizon
		if !task.DueAt.After(now) {
			reason = ReasonOverdue
		}

	sessions:
		for n := 0; n < needed; n++ {
			for first < len(days) && days[first].closed {
				first++
			}
			for di := first; di < len(days); di++ {
				d := &days[di]
				if d.closed {
					continue
				}
				if d.remaining < policy.PomodoroMins {
					d.closed = true
					continue
				}
				start, fr := d.fit(pomo, task.DueAt)
				switch fr {
				case fitWindow:
					d.closed = true
					continue
				case fitDeadline:
					if reason != ReasonOverdue {
						reason = ReasonDeadline
					}
					break sessions
				}

				work := newSlot(task.ID, SlotWork, start, start.Add(pomo))
				slots = append(slots, work)
				d.cursor = work.End
				d.remaining -= policy.PomodoroMins

				if b, ok := d.takeBreak(task, brk, policy); ok {
					slots = append(slots, b)
				}
				if d.remaining < policy.PomodoroMins {
					d.closed = true
				}
				continue sessions
			}
			break
		}

		sortSlots(slots)
		res.Slots[task.ID] = slots
		placed := countWork(slots)
		if placed >= needed {
			res.Outcomes[task.ID] = FullyScheduled{Sessions: placed}
		} else {
			res.Outcomes[task.ID] = PartiallyScheduled{Sessions: placed, Needed: needed, Reason: reason}
		}
	}
	return res
}

// takeBreak inserts a break at the cursor when capacity, window and deadline
// allow it. In cram mode a break that would leave less than one pomodoro of
// capacity for the day is skipped.
func (d *day) takeBreak(task Task, brk time.Duration, policy Policy) (Slot, bool) {
	if d.remaining < policy.BreakMins {
		return Slot{}, false
	}
	if policy.Cram && d.remaining-policy.BreakMins < policy.PomodoroMins {
		return Slot{}, false
	}
	start := d.cursor
	end := start.Add(brk)
	if end.After(d.end) || end.After(task.DueAt) {
		return Slot{}, false
	}
	for _, r := range d.reserved {
		if r.overlaps(start, end) {
			return Slot{}, false
		}
	}
	d.cursor = end
	d.remaining -= policy.BreakMins
	return newSlot(task.ID, SlotBreak, start, end), true
}

func buildDays(policy Policy, horizonDays int, now time.Time, cfg allocConfig) []day {
	if horizonDays <= 0 {
		return nil
	}
	loc := now.Location()
	y, m, dd := now.Date()

	reserved := make([]Slot, len(cfg.reserved))
	copy(reserved, cfg.reserved)
	sortSlots(reserved)

	days := make([]day, horizonDays)
	for i := range days {
		midnight := time.Date(y, m, dd+i, 0, 0, 0, 0, loc)
		next := time.Date(y, m, dd+i+1, 0, 0, 0, 0, loc)
		d := day{
			start:     clockOn(y, m, dd+i, cfg.window.Start, loc),
			end:       clockOn(y, m, dd+i, cfg.window.End, loc),
			remaining: policy.MaxDailyMins,
		}
		d.cursor = d.start
		if i == 0 && now.After(d.cursor) {
			d.cursor = now
		}
		for _, r := range reserved {
			if r.Start.Before(midnight) || !r.Start.Before(next) {
				continue
			}
			d.reserved = append(d.reserved, r)
			d.remaining -= r.Minutes()
		}
		days[i] = d
	}
	return days
}

// clockOn returns the wall-clock time off after midnight of the given day,
// so the window keeps its local hours across DST changes.
func clockOn(y int, m time.Month, d int, off time.Duration, loc *time.Location) time.Time {
	h := int(off / time.Hour)
	mins := int(off % time.Hour / time.Minute)
	return time.Date(y, m, d, h, mins, 0, 0, loc)
}

// SlotID derives the identifier of a slot from its task, kind and start.
func SlotID(taskID uint, kind SlotKind, start time.Time) string {
	key := fmt.Sprintf("%d|%s|%d", taskID, kind, start.UnixNano())
	return uuid.NewSHA1(slotNamespace, []byte(key)).String()
}

func newSlot(taskID uint, kind SlotKind, start, end time.Time) Slot {
	return Slot{
		ID:     SlotID(taskID, kind, start),
		TaskID: taskID,
		Start:  start,
		End:    end,
		Kind:   kind,
	}
}

func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		return a.Kind > b.Kind
	})
}

func countWork(slots []Slot) int {
	n := 0
	for _, s := range slots {
		if s.Kind == SlotWork {
			n++
		}
	}
	return n
}
