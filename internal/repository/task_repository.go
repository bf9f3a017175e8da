package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"study-planner/internal/model"
)

// TaskFilter narrows List. Zero values mean "any".
type TaskFilter struct {
	Statuses  []string
	Course    string
	DueBefore *time.Time
}

// TaskRepository handles CRUD for tasks and their slots.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Omit("Slots").Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Course").
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("start_at ASC, id ASC") })
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.withRelations(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// List returns the user's tasks with course and slots loaded, ordered by due time.
func (r *TaskRepository) List(ctx context.Context, userID uint, filter TaskFilter) ([]model.Task, error) {
	q := r.withRelations(ctx).Where("tasks.user_id = ?", userID)
	if len(filter.Statuses) > 0 {
		q = q.Where("tasks.status IN ?", filter.Statuses)
	}
	if filter.DueBefore != nil {
		q = q.Where("tasks.due_at < ?", *filter.DueBefore)
	}
	if filter.Course != "" {
		courses := r.db.Model(&model.Course{}).Select("id").Where("user_id = ? AND name = ?", userID, filter.Course)
		q = q.Where("tasks.course_id IN (?)", courses)
	}

	var tasks []model.Task
	if err := q.Order("tasks.due_at ASC, tasks.id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Update saves the task's own columns. Slots are changed through ReplaceSlots.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(task).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// ReplaceSlots swaps the plans of several tasks in one transaction. Every
// task must belong to userID.
func (r *TaskRepository) ReplaceSlots(ctx context.Context, userID uint, plans map[uint][]model.Slot, plannedAt time.Time) error {
	ids := make([]uint, 0, len(plans))
	for id := range plans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			res := tx.Model(&model.Task{}).
				Where("user_id = ? AND id = ?", userID, id).
				Update("last_planned_at", plannedAt)
			if res.Error != nil {
				return fmt.Errorf("touch task %d: %w", id, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("task %d: %w", id, ErrNotFound)
			}
			if err := tx.Where("task_id = ?", id).Delete(&model.Slot{}).Error; err != nil {
				return fmt.Errorf("clear slots of task %d: %w", id, err)
			}
			slots := plans[id]
			if len(slots) == 0 {
				continue
			}
			for i := range slots {
				slots[i].TaskID = id
			}
			if err := tx.Create(&slots).Error; err != nil {
				return fmt.Errorf("insert slots of task %d: %w", id, err)
			}
		}
		return nil
	})
}

// SetSlotDone flips the done flag of one slot of the user's task.
func (r *TaskRepository) SetSlotDone(ctx context.Context, userID, taskID uint, slotID string, done bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Task{}).Where("user_id = ? AND id = ?", userID, taskID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		res := tx.Model(&model.Slot{}).Where("id = ? AND task_id = ?", slotID, taskID).Update("done", done)
		if res.Error != nil {
			return fmt.Errorf("update slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes a task together with its slots.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&model.Task{}).Select("id").Where("user_id = ? AND id = ?", userID, taskID)
		if err := tx.Where("task_id IN (?)", owned).Delete(&model.Slot{}).Error; err != nil {
			return fmt.Errorf("delete slots: %w", err)
		}
		res := tx.Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
