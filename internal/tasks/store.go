package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists tasks. Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts all tasks or none.
	Create(ctx context.Context, tasks []*Task) error
	Get(ctx context.Context, id string) (*Task, error)
	// List returns matching tasks ordered by due date.
	List(ctx context.Context, f Filter) ([]*Task, error)
	// MarkOverdue moves outstanding tasks due before now to overdue.
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
	// DueForReminder returns open tasks due before dueBefore that were never
	// reminded or last reminded before remindedBefore.
	DueForReminder(ctx context.Context, dueBefore, remindedBefore time.Time) ([]*Task, error)
	RecordReminder(ctx context.Context, id string, at time.Time) error
	Submit(ctx context.Context, id string, at time.Time) (*Task, error)
	Close() error
}

// MemoryStore keeps tasks in a map. Contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

func (s *MemoryStore) Create(ctx context.Context, tasks []*Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		s.tasks[t.ID] = cloneTask(t)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.matches(t) {
			out = append(out, cloneTask(t))
		}
	}
	sortByDue(out)
	return out, nil
}

func (s *MemoryStore) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == StatusOutstanding && t.DueDate.Before(now) {
			t.Status = StatusOverdue
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DueForReminder(ctx context.Context, dueBefore, remindedBefore time.Time) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Task
	for _, t := range s.tasks {
		if !t.Status.Open() || !t.DueDate.Before(dueBefore) {
			continue
		}
		if t.LastReminderAt != nil && !t.LastReminderAt.Before(remindedBefore) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sortByDue(out)
	return out, nil
}

func (s *MemoryStore) RecordReminder(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.LastReminderAt = &at
	return nil
}

func (s *MemoryStore) Submit(ctx context.Context, id string, at time.Time) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !t.Status.Open() {
		return nil, ErrAlreadySubmitted
	}
	t.Status = StatusSubmitted
	t.SubmittedAt = &at
	return cloneTask(t), nil
}

func (s *MemoryStore) Close() error { return nil }

func sortByDue(ts []*Task) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].DueDate.Equal(ts[j].DueDate) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].DueDate.Before(ts[j].DueDate)
	})
}
