package planner

import "errors"

// Sentinel errors for the planner package.
// Use errors.Is to check: errors.Is(err, planner.ErrInvalidPolicy)
var (
	ErrInvalidPolicy = errors.New("planner: invalid policy")
	ErrTaskNotFound  = errors.New("planner: task not found")
)
