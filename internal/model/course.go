package model

import "time"

// Course groups study tasks by subject (math, physics, essays, etc.).
type Course struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_user_course_name,unique"`
	Name      string `gorm:"index:idx_user_course_name,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Tasks     []Task `gorm:"foreignKey:CourseID"`
}
