package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"study-planner/internal/model"
)

// PolicyRepository stores per-user scheduling policies.
type PolicyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Get returns ErrNotFound when the user never saved a policy.
func (r *PolicyRepository) Get(ctx context.Context, userID uint) (*model.Policy, error) {
	var p model.Policy
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Save inserts or replaces the user's policy.
func (r *PolicyRepository) Save(ctx context.Context, p *model.Policy) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	return nil
}
