package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"study-planner/internal/logger"
	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
)

// ErrSlotNotFound is returned when a task has no open slot with the given id.
var ErrSlotNotFound = errors.New("service: slot not found")

// PlannerOptions configures a PlannerService. Zero fields take defaults.
type PlannerOptions struct {
	HorizonDays int
	Window      planner.Window
	Location    *time.Location
	Now         func() time.Time
	Notifier    Notifier
	Logger      *logger.Logger
	// Locks is shared with the TaskService writing the same tasks.
	Locks *UserLocks
}

// PlannerService runs the scheduling engine against stored tasks. Every
// read-allocate-write pass for a user holds that user's planning lock.
type PlannerService struct {
	tasks    *repository.TaskRepository
	policies *PolicyService
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
	loc      *time.Location
	horizon  int
	window   planner.Window
	locks    *UserLocks
}

func NewPlannerService(tasks *repository.TaskRepository, policies *PolicyService, opts PlannerOptions) *PlannerService {
	s := &PlannerService{
		tasks:    tasks,
		policies: policies,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      opts.Now,
		loc:      opts.Location,
		horizon:  opts.HorizonDays,
		window:   opts.Window,
		locks:    opts.Locks,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.log)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.locks == nil {
		s.locks = NewUserLocks()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.horizon <= 0 {
		s.horizon = 7
	}
	if !s.window.Valid() {
		s.window = planner.DefaultWindow
	}
	return s
}

// HorizonDays reports how many calendar days a plan spans.
func (s *PlannerService) HorizonDays() int { return s.horizon }

// Location is the time zone plans are laid out in.
func (s *PlannerService) Location() *time.Location { return s.loc }

func (s *PlannerService) clock() time.Time {
	return s.now().In(s.loc)
}

// GenerateWeeklyPlan drops every unstarted slot and plans all open tasks
// afresh. override adjusts the stored policy for this pass only.
func (s *PlannerService) GenerateWeeklyPlan(ctx context.Context, userID uint, override planner.PolicyOverride) (planner.ReplanResult, error) {
	var res planner.ReplanResult
	err := s.withUserLock(ctx, userID, func(now time.Time, tasks []planner.Task, policy planner.Policy) error {
		policy, err := policy.Merge(override)
		if err != nil {
			return err
		}
		res = planner.Regenerate(tasks, policy, s.horizon, now, planner.WithWindow(s.window))
		return s.persist(ctx, userID, res, now)
	})
	return res, err
}

// PlanTask plans one task around the slots every other task already holds.
func (s *PlannerService) PlanTask(ctx context.Context, userID, taskID uint) (planner.ReplanResult, error) {
	var res planner.ReplanResult
	err := s.withUserLock(ctx, userID, func(now time.Time, tasks []planner.Task, policy planner.Policy) error {
		var err error
		res, err = planner.PlanTask(taskID, tasks, policy, s.horizon, now, planner.WithWindow(s.window))
		if err != nil {
			return err
		}
		return s.persist(ctx, userID, res, now)
	})
	return res, err
}

// ReplanTask recovers missed work and returns the new plan of taskID.
func (s *PlannerService) ReplanTask(ctx context.Context, userID, taskID uint) (planner.ReplanResult, error) {
	var res planner.ReplanResult
	err := s.withUserLock(ctx, userID, func(now time.Time, tasks []planner.Task, policy planner.Policy) error {
		var err error
		res, err = planner.Replan(taskID, tasks, policy, s.horizon, now, planner.WithWindow(s.window))
		if err != nil {
			return err
		}
		return s.persist(ctx, userID, res, now)
	})
	return res, err
}

// ReplanUser recovers missed work across all of the user's tasks.
func (s *PlannerService) ReplanUser(ctx context.Context, userID uint) (planner.ReplanResult, error) {
	var res planner.ReplanResult
	err := s.withUserLock(ctx, userID, func(now time.Time, tasks []planner.Task, policy planner.Policy) error {
		res = planner.ReplanAll(tasks, policy, s.horizon, now, planner.WithWindow(s.window))
		return s.persist(ctx, userID, res, now)
	})
	return res, err
}

// UpdateSlot checks a slot off, or unchecks it. A finished work slot adds
// to the task's metrics and moves a todo task to doing.
func (s *PlannerService) UpdateSlot(ctx context.Context, userID, taskID uint, slotID string, done bool) error {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquire planning lock: %w", err)
	}
	defer release()

	task, err := s.tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		return s.mapNotFound(err)
	}
	var slot *model.Slot
	for i := range task.Slots {
		if task.Slots[i].ID == slotID {
			slot = &task.Slots[i]
			break
		}
	}
	if slot == nil {
		return fmt.Errorf("slot %s: %w", slotID, ErrSlotNotFound)
	}
	if slot.Done == done {
		return nil
	}
	if err := s.tasks.SetSlotDone(ctx, userID, taskID, slotID, done); err != nil {
		return err
	}

	if slot.Kind == string(planner.SlotWork) {
		mins := int(slot.End.Sub(slot.Start).Minutes())
		if done {
			task.Sessions++
			task.MinutesSpent += mins
			if task.Status == string(planner.StatusTodo) {
				task.Status = string(planner.StatusDoing)
			}
		} else {
			task.Sessions = max(task.Sessions-1, 0)
			task.MinutesSpent = max(task.MinutesSpent-mins, 0)
		}
		if err := s.tasks.Update(ctx, task); err != nil {
			return err
		}
	}
	s.notify(ctx, Event{Type: EventTaskUpdated, UserID: userID, TaskIDs: []uint{taskID}, At: s.clock()})
	return nil
}

// SkipSlot gives up an unworked slot. Its session is placed again elsewhere
// and the skipped interval stays free during this pass.
func (s *PlannerService) SkipSlot(ctx context.Context, userID, taskID uint, slotID string) (planner.ReplanResult, error) {
	var res planner.ReplanResult
	err := s.withUserLock(ctx, userID, func(now time.Time, tasks []planner.Task, policy planner.Policy) error {
		var skipped *planner.Slot
		found := false
		for i := range tasks {
			if tasks[i].ID != taskID {
				continue
			}
			found = true
			for j, slot := range tasks[i].Slots {
				if slot.ID == slotID && !slot.Done {
					skipped = &slot
					tasks[i].Slots = append(tasks[i].Slots[:j:j], tasks[i].Slots[j+1:]...)
					break
				}
			}
		}
		if !found {
			return planner.ErrTaskNotFound
		}
		if skipped == nil {
			return fmt.Errorf("slot %s: %w", slotID, ErrSlotNotFound)
		}
		block := *skipped
		block.TaskID = 0
		var err error
		res, err = planner.Replan(taskID, tasks, policy, s.horizon, now,
			planner.WithWindow(s.window), planner.WithReserved([]planner.Slot{block}))
		if err != nil {
			return err
		}
		if _, ok := res.Plans[taskID]; !ok {
			// Nothing new fit, the task still loses the skipped slot.
			res.Plans[taskID] = res.Slots
			res.Changed = append(res.Changed, taskID)
		}
		return s.persist(ctx, userID, res, now)
	})
	return res, err
}

// WeeklyView returns the day-grouped plan without changing anything.
func (s *PlannerService) WeeklyView(ctx context.Context, userID uint) (planner.WeeklyPlan, error) {
	tasks, err := s.loadTasks(ctx, userID)
	if err != nil {
		return planner.WeeklyPlan{}, err
	}
	return planner.Aggregate(tasks, s.horizon, s.clock()), nil
}

// TodaySessions lists today's slots per open task.
func (s *PlannerService) TodaySessions(ctx context.Context, userID uint) ([]planner.TaskSessions, error) {
	tasks, err := s.loadTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return planner.TodaySessions(tasks, s.clock()), nil
}

func (s *PlannerService) Deadlines(ctx context.Context, userID uint) (planner.Deadlines, error) {
	tasks, err := s.loadTasks(ctx, userID)
	if err != nil {
		return planner.Deadlines{}, err
	}
	return planner.Classify(tasks, s.clock()), nil
}

func (s *PlannerService) Stats(ctx context.Context, userID uint) (planner.Stats, error) {
	tasks, err := s.loadTasks(ctx, userID)
	if err != nil {
		return planner.Stats{}, err
	}
	return planner.ComputeStats(tasks), nil
}

// Dashboard is the combined read model shown in reports.
type Dashboard struct {
	Now       time.Time
	Policy    planner.Policy
	Today     []planner.TaskSessions
	Deadlines planner.Deadlines
	Stats     planner.Stats
}

// Dashboard loads open tasks, all tasks and the policy concurrently.
func (s *PlannerService) Dashboard(ctx context.Context, userID uint) (Dashboard, error) {
	now := s.clock()
	var (
		open   []model.Task
		all    []model.Task
		policy planner.Policy
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		open, err = s.tasks.List(gctx, userID, repository.TaskFilter{
			Statuses: []string{string(planner.StatusTodo), string(planner.StatusDoing)},
		})
		return err
	})
	g.Go(func() error {
		var err error
		all, err = s.tasks.List(gctx, userID, repository.TaskFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		policy, err = s.policies.Get(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	openTasks := toPlannerTasks(open)
	return Dashboard{
		Now:       now,
		Policy:    policy,
		Today:     planner.TodaySessions(openTasks, now),
		Deadlines: planner.Classify(openTasks, now),
		Stats:     planner.ComputeStats(toPlannerTasks(all)),
	}, nil
}

// withUserLock loads the user's tasks and policy under the planning lock
// and hands them to fn.
func (s *PlannerService) withUserLock(ctx context.Context, userID uint, fn func(now time.Time, tasks []planner.Task, policy planner.Policy) error) error {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquire planning lock: %w", err)
	}
	defer release()

	policy, err := s.policies.Get(ctx, userID)
	if err != nil {
		return err
	}
	tasks, err := s.loadTasks(ctx, userID)
	if err != nil {
		return err
	}
	return s.mapNotFound(fn(s.clock(), tasks, policy))
}

func (s *PlannerService) loadTasks(ctx context.Context, userID uint) ([]planner.Task, error) {
	stored, err := s.tasks.List(ctx, userID, repository.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return toPlannerTasks(stored), nil
}

func (s *PlannerService) persist(ctx context.Context, userID uint, res planner.ReplanResult, now time.Time) error {
	if len(res.Plans) == 0 {
		return nil
	}
	plans := make(map[uint][]model.Slot, len(res.Plans))
	for id, slots := range res.Plans {
		plans[id] = toModelSlots(slots)
	}
	if err := s.tasks.ReplaceSlots(ctx, userID, plans, now.UTC()); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}

	insufficient := insufficientTasks(res)
	s.log.Info("plan updated",
		"user_id", userID,
		"tasks", len(res.Plans),
		"missed", len(res.Missed),
		"insufficient", insufficient,
	)
	s.notify(ctx, Event{
		Type:         EventPlanUpdate,
		UserID:       userID,
		TaskIDs:      res.Changed,
		Insufficient: insufficient,
		Missed:       len(res.Missed),
		At:           now,
	})
	return nil
}

func (s *PlannerService) notify(ctx context.Context, ev Event) {
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("notify failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

func (s *PlannerService) mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) && !errors.Is(err, planner.ErrTaskNotFound) {
		return fmt.Errorf("%w: %w", planner.ErrTaskNotFound, err)
	}
	return err
}

func insufficientTasks(res planner.ReplanResult) []uint {
	var ids []uint
	for id, o := range res.Outcomes {
		if _, short := planner.Shortfall(o); short {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
