package service

import (
	"context"
	"errors"
	"fmt"

	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
)

// PolicyService reads and updates per-user scheduling policies.
type PolicyService struct {
	repo     *repository.PolicyRepository
	fallback planner.Policy
}

// NewPolicyService uses fallback for users without a stored policy. An
// invalid fallback is replaced by the built-in defaults.
func NewPolicyService(repo *repository.PolicyRepository, fallback planner.Policy) *PolicyService {
	if fallback.Validate() != nil {
		fallback = planner.DefaultPolicy()
	}
	return &PolicyService{repo: repo, fallback: fallback}
}

func (s *PolicyService) Get(ctx context.Context, userID uint) (planner.Policy, error) {
	stored, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		return planner.Policy{}, fmt.Errorf("load policy: %w", err)
	}
	p := planner.Policy{
		PomodoroMins: stored.PomodoroMins,
		BreakMins:    stored.BreakMins,
		MaxDailyMins: stored.MaxDailyMins,
		Cram:         stored.CramMode,
	}
	if err := p.Validate(); err != nil {
		return s.fallback, nil
	}
	return p, nil
}

// Update merges the override into the user's current policy and stores the
// result when it is valid.
func (s *PolicyService) Update(ctx context.Context, userID uint, override planner.PolicyOverride) (planner.Policy, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return planner.Policy{}, err
	}
	merged, err := current.Merge(override)
	if err != nil {
		return planner.Policy{}, err
	}
	err = s.repo.Save(ctx, &model.Policy{
		UserID:       userID,
		PomodoroMins: merged.PomodoroMins,
		BreakMins:    merged.BreakMins,
		MaxDailyMins: merged.MaxDailyMins,
		CramMode:     merged.Cram,
	})
	if err != nil {
		return planner.Policy{}, err
	}
	return merged, nil
}
