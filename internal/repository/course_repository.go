package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// CourseRepository manages the courses tasks are filed under.
type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetOrCreate returns the user's course with the given name, creating it on
// first use. An empty name yields nil.
func (r *CourseRepository) GetOrCreate(ctx context.Context, userID uint, name string) (*model.Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var course model.Course
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND name = ?", userID, name).First(&course).Error
	switch {
	case err == nil:
		return &course, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		course = model.Course{UserID: userID, Name: name}
		if err := db.Create(&course).Error; err != nil {
			return nil, fmt.Errorf("create course: %w", err)
		}
		return &course, nil
	default:
		return nil, fmt.Errorf("find course: %w", err)
	}
}

func (r *CourseRepository) ListByUser(ctx context.Context, userID uint) ([]model.Course, error) {
	var courses []model.Course
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}
