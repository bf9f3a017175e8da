package planner

import "time"

// ReplanResult carries the new plans produced by a replanning pass.
type ReplanResult struct {
	// Slots is the new plan of the task that triggered the replan.
	Slots []Slot
	// Plans holds the complete new plan of every task touched by the pass.
	Plans map[uint][]Slot
	// Outcomes reports, per touched task, the sessions its plan holds (kept
	// work plus new sessions) against what it needs.
	Outcomes map[uint]Outcome
	// Missed lists the unworked slots that were dropped and recovered.
	Missed []Slot
	// Changed lists touched tasks in urgency order.
	Changed []uint
}

// plannedTask is one task's input to a rebuild: the slots to keep and how
// many fresh sessions it still needs.
type plannedTask struct {
	task        Task
	kept        []Slot
	missed      []Slot
	outstanding int
}

// Replan recovers missed work for the user's plan and returns the new plan of
// taskID. Missed slots are work slots that ended before now and were not done;
// each one is re-placed as a fresh session. Done slots, slots in progress and
// unstarted slots that still end by the task's due time are kept verbatim.
// Unstarted slots past the due time are dropped and their work placed again.
// Every other schedulable task takes part so that capacity is shared; tasks
// without a full plan get their uncovered sessions.
func Replan(taskID uint, tasks []Task, policy Policy, horizonDays int, now time.Time, opts ...Option) (ReplanResult, error) {
	if !containsTask(tasks, taskID) {
		return ReplanResult{}, ErrTaskNotFound
	}
	res := ReplanAll(tasks, policy, horizonDays, now, opts...)
	res.Slots = planOf(res, tasks, taskID)
	return res, nil
}

// ReplanAll runs the missed-work recovery for every schedulable task.
func ReplanAll(tasks []Task, policy Policy, horizonDays int, now time.Time, opts ...Option) ReplanResult {
	return rebuild(tasks, policy, horizonDays, now, opts, func(t Task) plannedTask {
		pt := plannedTask{task: t}
		missedWork, staleWork := 0, 0
		for _, s := range t.Slots {
			switch {
			case s.Done:
				pt.kept = append(pt.kept, s)
			case !s.Start.Before(now) && s.End.After(t.DueAt):
				// Unstarted but no longer feasible: the due time moved earlier.
				if s.Kind == SlotWork {
					staleWork++
				}
			case !s.End.Before(now):
				pt.kept = append(pt.kept, s)
			default:
				pt.missed = append(pt.missed, s)
				if s.Kind == SlotWork {
					missedWork++
				}
			}
		}
		if missedWork > 0 {
			pt.outstanding = missedWork + staleWork
			return pt
		}
		pt.outstanding = policy.SessionsFor(t.EstMins) - countWork(pt.kept)
		return pt
	})
}

// Regenerate discards every slot that is neither done nor in progress and
// plans all schedulable tasks afresh around the remaining ones.
func Regenerate(tasks []Task, policy Policy, horizonDays int, now time.Time, opts ...Option) ReplanResult {
	return rebuild(tasks, policy, horizonDays, now, opts, func(t Task) plannedTask {
		pt := plannedTask{task: t, kept: keepStarted(t.Slots, now)}
		pt.outstanding = policy.SessionsFor(t.EstMins) - countWork(pt.kept)
		return pt
	})
}

// PlanTask plans a single task afresh, leaving every other task's slots in
// place as reserved time.
func PlanTask(taskID uint, tasks []Task, policy Policy, horizonDays int, now time.Time, opts ...Option) (ReplanResult, error) {
	if !containsTask(tasks, taskID) {
		return ReplanResult{}, ErrTaskNotFound
	}
	res := rebuild(tasks, policy, horizonDays, now, opts, func(t Task) plannedTask {
		if t.ID != taskID {
			return plannedTask{task: t, kept: t.Slots}
		}
		pt := plannedTask{task: t, kept: keepStarted(t.Slots, now)}
		pt.outstanding = policy.SessionsFor(t.EstMins) - countWork(pt.kept)
		return pt
	})
	res.Slots = planOf(res, tasks, taskID)
	return res, nil
}

// planOf returns the task's new plan, or its current slots when the pass
// left it untouched.
func planOf(res ReplanResult, tasks []Task, id uint) []Slot {
	if plan, ok := res.Plans[id]; ok {
		return plan
	}
	for _, t := range tasks {
		if t.ID == id {
			slots := append([]Slot(nil), t.Slots...)
			sortSlots(slots)
			return slots
		}
	}
	return nil
}

func rebuild(tasks []Task, policy Policy, horizonDays int, now time.Time, opts []Option, split func(Task) plannedTask) ReplanResult {
	ranked := Rank(tasks, now)

	var reserved []Slot
	for _, t := range tasks {
		if t.Status.Schedulable() {
			continue
		}
		reserved = append(reserved, keepStarted(t.Slots, now)...)
		for _, s := range t.Slots {
			if !s.Done && !s.Start.Before(now) {
				reserved = append(reserved, s)
			}
		}
	}

	parts := make([]plannedTask, 0, len(ranked))
	demands := make([]Task, 0, len(ranked))
	for _, t := range ranked {
		pt := split(t)
		parts = append(parts, pt)
		reserved = append(reserved, pt.kept...)
		if pt.outstanding > 0 {
			d := t
			d.EstMins = pt.outstanding * policy.PomodoroMins
			d.Slots = nil
			demands = append(demands, d)
		}
	}

	allocOpts := append(append([]Option(nil), opts...), WithReserved(reserved))
	alloc := Allocate(demands, policy, horizonDays, now, allocOpts...)

	res := ReplanResult{
		Plans:    make(map[uint][]Slot, len(parts)),
		Outcomes: make(map[uint]Outcome, len(parts)),
	}
	for _, pt := range parts {
		id := pt.task.ID
		fresh := alloc.Slots[id]
		res.Missed = append(res.Missed, pt.missed...)
		keptWork := countWork(pt.kept)
		if len(fresh) == 0 && len(pt.kept) == len(pt.task.Slots) {
			if o, ok := alloc.Outcomes[id]; ok {
				res.Outcomes[id] = withKept(o, keptWork)
			}
			continue
		}
		plan := make([]Slot, 0, len(pt.kept)+len(fresh))
		plan = append(plan, pt.kept...)
		plan = append(plan, fresh...)
		sortSlots(plan)
		res.Plans[id] = plan
		res.Changed = append(res.Changed, id)
		if o, ok := alloc.Outcomes[id]; ok {
			res.Outcomes[id] = withKept(o, keptWork)
		} else {
			res.Outcomes[id] = FullyScheduled{Sessions: keptWork}
		}
	}
	sortSlots(res.Missed)
	return res
}

// withKept adds the work sessions a task keeps to the outcome of its new ones.
func withKept(o Outcome, kept int) Outcome {
	switch o := o.(type) {
	case FullyScheduled:
		return FullyScheduled{Sessions: o.Sessions + kept}
	case PartiallyScheduled:
		return PartiallyScheduled{Sessions: o.Sessions + kept, Needed: o.Needed + kept, Reason: o.Reason}
	}
	return o
}

// keepStarted returns done slots and slots already in progress at now.
func keepStarted(slots []Slot, now time.Time) []Slot {
	var kept []Slot
	for _, s := range slots {
		if s.Done || (s.Start.Before(now) && s.End.After(now)) {
			kept = append(kept, s)
		}
	}
	return kept
}

func containsTask(tasks []Task, id uint) bool {
	for _, t := range tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}
