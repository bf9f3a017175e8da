package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// UserLocks serialises every mutation of a user's tasks and slots. The
// planner and task services must share one instance. Entries are created on
// demand and dropped once no caller holds or waits for them.
type UserLocks struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

type userLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[uint]*userLock)}
}

// acquire blocks until the user's lock is free or ctx is done.
func (l *UserLocks) acquire(ctx context.Context, userID uint) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &userLock{sem: semaphore.NewWeighted(1)}
		l.locks[userID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.unref(userID, lock)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(userID, lock)
		})
	}, nil
}

func (l *UserLocks) unref(userID uint, lock *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 && l.locks[userID] == lock {
		delete(l.locks, userID)
	}
}

func (l *UserLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// pending counts callers holding or waiting for the user's lock.
func (l *UserLocks) pending(userID uint) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lock, ok := l.locks[userID]; ok {
		return lock.refs
	}
	return 0
}
