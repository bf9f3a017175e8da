package service

import (
	"study-planner/internal/model"
	"study-planner/internal/planner"
)

func toPlannerTask(t model.Task) planner.Task {
	return planner.Task{
		ID:           t.ID,
		Title:        t.Title,
		Course:       t.CourseName(),
		EstMins:      t.EstMins,
		DueAt:        t.DueAt,
		Priority:     t.Priority,
		Status:       planner.Status(t.Status),
		Slots:        toPlannerSlots(t.Slots),
		MinutesSpent: t.MinutesSpent,
		CompletedAt:  t.CompletedAt,
	}
}

func toPlannerTasks(tasks []model.Task) []planner.Task {
	out := make([]planner.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toPlannerTask(t))
	}
	return out
}

func toPlannerSlots(slots []model.Slot) []planner.Slot {
	if len(slots) == 0 {
		return nil
	}
	out := make([]planner.Slot, 0, len(slots))
	for _, s := range slots {
		out = append(out, planner.Slot{
			ID:     s.ID,
			TaskID: s.TaskID,
			Start:  s.Start,
			End:    s.End,
			Kind:   planner.SlotKind(s.Kind),
			Done:   s.Done,
		})
	}
	return out
}

func toModelSlots(slots []planner.Slot) []model.Slot {
	out := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		out = append(out, model.Slot{
			ID:     s.ID,
			TaskID: s.TaskID,
			Start:  s.Start.UTC(),
			End:    s.End.UTC(),
			Kind:   string(s.Kind),
			Done:   s.Done,
		})
	}
	return out
}
