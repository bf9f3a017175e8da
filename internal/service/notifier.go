package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"study-planner/internal/logger"
)

// EventType names a notification sent after a successful mutation.
type EventType string

const (
	// EventPlanUpdate follows any pass that rewrote slots.
	EventPlanUpdate EventType = "plan.update"
	// EventTaskUpdated follows task edits, completions and slot check-offs.
	EventTaskUpdated EventType = "task.updated"
)

// Event describes what changed for a user.
type Event struct {
	Type   EventType
	UserID uint
	// TaskIDs lists the tasks whose data or plan changed.
	TaskIDs []uint
	// Insufficient lists tasks that could not get every session they need.
	Insufficient []uint
	// Missed counts unworked slots recovered by a replan.
	Missed int
	At     time.Time
}

// Notifier delivers events to the user. Delivery errors never undo the
// mutation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the log. It is used when no front end is
// attached, for example from the CLI.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info("planner event",
		"type", ev.Type,
		"user_id", ev.UserID,
		"tasks", ev.TaskIDs,
		"insufficient", ev.Insufficient,
		"missed", ev.Missed,
	)
	return nil
}

// MultiNotifier fans events out to every attached notifier. Targets can be
// attached after the services using it were built.
type MultiNotifier struct {
	mu      sync.RWMutex
	targets []Notifier
}

func NewMultiNotifier(targets ...Notifier) *MultiNotifier {
	return &MultiNotifier{targets: targets}
}

func (m *MultiNotifier) Attach(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, n)
}

func (m *MultiNotifier) Notify(ctx context.Context, ev Event) error {
	m.mu.RLock()
	targets := append([]Notifier(nil), m.targets...)
	m.mu.RUnlock()

	var errs []error
	for _, n := range targets {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
