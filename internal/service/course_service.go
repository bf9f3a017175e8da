package service

import (
	"context"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// CourseService provides helpers around courses.
type CourseService struct {
	repo *repository.CourseRepository
}

func NewCourseService(repo *repository.CourseRepository) *CourseService {
	return &CourseService{repo: repo}
}

func (s *CourseService) List(ctx context.Context, userID uint) ([]model.Course, error) {
	return s.repo.ListByUser(ctx, userID)
}
