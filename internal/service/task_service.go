package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"study-planner/internal/logger"
	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
)

// ErrInvalidTask is returned when task input breaks a field constraint.
var ErrInvalidTask = errors.New("service: invalid task")

const (
	defaultTitle    = "Untitled Task"
	defaultEstMins  = 60
	defaultPriority = 3
	defaultDueIn    = 7 * 24 * time.Hour
)

// TaskInput represents data required to create a task. Zero values take
// the creation defaults.
type TaskInput struct {
	Title    string
	Course   string
	Type     string
	Notes    string
	EstMins  int
	DueAt    *time.Time
	Priority int
	Steps    []string
	Tags     []string
	Rubric   string
}

// TaskPatch changes selected fields of a task. Nil fields are left alone.
type TaskPatch struct {
	Title    *string
	Course   *string
	Notes    *string
	EstMins  *int
	DueAt    *time.Time
	Priority *int
	Status   *string
}

// AffectsPlan reports whether the patch changes what the planner needs to
// place for the task.
func (p TaskPatch) AffectsPlan() bool {
	return p.EstMins != nil || p.DueAt != nil || p.Status != nil
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo   *repository.TaskRepository
	courseRepo *repository.CourseRepository
	locks      *UserLocks
	notifier   Notifier
	log        *logger.Logger
	now        func() time.Time
}

func NewTaskService(taskRepo *repository.TaskRepository, courseRepo *repository.CourseRepository, locks *UserLocks, notifier Notifier, log *logger.Logger, now func() time.Time) *TaskService {
	if locks == nil {
		locks = NewUserLocks()
	}
	if log == nil {
		log = logger.Nop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	if now == nil {
		now = time.Now
	}
	return &TaskService{taskRepo: taskRepo, courseRepo: courseRepo, locks: locks, notifier: notifier, log: log, now: now}
}

func (s *TaskService) CreateTask(ctx context.Context, userID uint, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultTitle
	}
	est := input.EstMins
	switch {
	case est == 0:
		est = defaultEstMins
	case est < 0:
		return nil, fmt.Errorf("%w: estimate must be positive", ErrInvalidTask)
	}
	priority := input.Priority
	if priority == 0 {
		priority = defaultPriority
	}
	if priority < 1 || priority > 5 {
		return nil, fmt.Errorf("%w: priority must be between 1 and 5", ErrInvalidTask)
	}
	due := s.now().Add(defaultDueIn)
	if input.DueAt != nil {
		due = *input.DueAt
	}

	courseID, err := s.courseID(ctx, userID, input.Course)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:   userID,
		CourseID: courseID,
		Title:    title,
		Type:     normalizeType(input.Type),
		Notes:    strings.TrimSpace(input.Notes),
		EstMins:  est,
		DueAt:    due.UTC(),
		Priority: priority,
		Status:   string(planner.StatusTodo),
		Steps:    input.Steps,
		Tags:     input.Tags,
		Rubric:   input.Rubric,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Type: EventTaskUpdated, UserID: userID, TaskIDs: []uint{task.ID}})
	return &task, nil
}

// UpdateTask applies patch and returns the stored task. Plans are not
// touched; callers replan when the estimate or due time moved.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID uint, patch TaskPatch) (*model.Task, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if title := strings.TrimSpace(*patch.Title); title != "" {
			task.Title = title
		}
	}
	if patch.Notes != nil {
		task.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.EstMins != nil {
		if *patch.EstMins <= 0 {
			return nil, fmt.Errorf("%w: estimate must be positive", ErrInvalidTask)
		}
		task.EstMins = *patch.EstMins
	}
	if patch.DueAt != nil {
		task.DueAt = patch.DueAt.UTC()
	}
	if patch.Priority != nil {
		if *patch.Priority < 1 || *patch.Priority > 5 {
			return nil, fmt.Errorf("%w: priority must be between 1 and 5", ErrInvalidTask)
		}
		task.Priority = *patch.Priority
	}
	if patch.Status != nil {
		status, err := planner.ParseStatus(*patch.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		task.Status = string(status)
	}
	if patch.Course != nil {
		courseID, err := s.courseID(ctx, userID, *patch.Course)
		if err != nil {
			return nil, err
		}
		task.CourseID = courseID
		task.Course = nil
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	s.notify(ctx, Event{Type: EventTaskUpdated, UserID: userID, TaskIDs: []uint{task.ID}})
	return s.taskRepo.FindByID(ctx, userID, taskID)
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, userID, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, userID uint, filter repository.TaskFilter) ([]model.Task, error) {
	return s.taskRepo.List(ctx, userID, filter)
}

// ListOpen returns the tasks still waiting for work.
func (s *TaskService) ListOpen(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.taskRepo.List(ctx, userID, repository.TaskFilter{
		Statuses: []string{string(planner.StatusTodo), string(planner.StatusDoing)},
	})
}

// CompleteTask marks a task done and records how long it took. When
// minutesSpent is not positive the finished work slots are counted instead.
// Slots that have not started yet are released.
func (s *TaskService) CompleteTask(ctx context.Context, userID, taskID uint, minutesSpent int) (*model.Task, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var kept []model.Slot
	sessions, worked := 0, 0
	for _, slot := range task.Slots {
		if slot.Done && slot.Kind == string(planner.SlotWork) {
			sessions++
			worked += int(slot.End.Sub(slot.Start).Minutes())
		}
		if slot.Done || slot.Start.Before(now) {
			kept = append(kept, slot)
		}
	}
	if minutesSpent <= 0 {
		minutesSpent = worked
	}

	completedAt := now.UTC()
	task.Status = string(planner.StatusDone)
	task.CompletedAt = &completedAt
	task.MinutesSpent = minutesSpent
	if sessions > task.Sessions {
		task.Sessions = sessions
	}
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	if len(kept) != len(task.Slots) {
		if err := s.taskRepo.ReplaceSlots(ctx, userID, map[uint][]model.Slot{task.ID: kept}, completedAt); err != nil {
			return nil, err
		}
		task.Slots = kept
	}
	s.notify(ctx, Event{Type: EventTaskUpdated, UserID: userID, TaskIDs: []uint{task.ID}, At: now})
	return task, nil
}

// DeleteTask removes a task and its slots.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID uint) error {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.taskRepo.Delete(ctx, userID, taskID); err != nil {
		return err
	}
	s.notify(ctx, Event{Type: EventTaskUpdated, UserID: userID, TaskIDs: []uint{taskID}})
	return nil
}

func (s *TaskService) lock(ctx context.Context, userID uint) (func(), error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("acquire planning lock: %w", err)
	}
	return release, nil
}

func (s *TaskService) courseID(ctx context.Context, userID uint, name string) (*uint, error) {
	course, err := s.courseRepo.GetOrCreate(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, nil
	}
	return &course.ID, nil
}

func (s *TaskService) notify(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("notify failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

func normalizeType(raw string) string {
	switch t := strings.ToLower(strings.TrimSpace(raw)); t {
	case model.TaskTypeHomework, model.TaskTypeProject, model.TaskTypeLab, model.TaskTypeEssay, model.TaskTypeExam:
		return t
	default:
		return model.TaskTypeHomework
	}
}
