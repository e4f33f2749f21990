package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo держит задачи в памяти процесса. Используется в тестах и
// при локальном запуске без postgres.
type MemoryRepo struct {
	mu    sync.Mutex
	tasks map[string]*Task
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

func (r *MemoryRepo) Create(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrTaskExists, t.ID)
	}

	t.Status = StatusCreated
	t.CreatedAt = r.now()
	t.Result, t.Cost, t.FinishedAt = nil, nil, nil

	r.tasks[t.ID] = clone(t)
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return clone(t), nil
}

func (r *MemoryRepo) Update(_ context.Context, id string, u Update) (*Task, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.Status != u.From {
		return clone(t), fmt.Errorf("%w: %s is %s, expected %s", ErrInvalidTransition, id, t.Status, u.From)
	}

	t.Status = u.To
	if t.Result == nil && u.Result != nil {
		v := *u.Result
		t.Result = &v
	}
	if t.Cost == nil && u.Cost != nil {
		v := *u.Cost
		t.Cost = &v
	}
	if u.To.IsTerminal() {
		now := r.now()
		t.FinishedAt = &now
	}
	return clone(t), nil
}

func (r *MemoryRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Task
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) DeleteFinishedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tasks {
		if t.FinishedAt != nil && t.FinishedAt.Before(before) {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func clone(t *Task) *Task {
	c := *t
	if t.Result != nil {
		v := *t.Result
		c.Result = &v
	}
	if t.Cost != nil {
		v := *t.Cost
		c.Cost = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		c.FinishedAt = &v
	}
	return &c
}

// Completed отдаёт задачи в COMPLETED, завершённые до before, по порядку завершения.
func (r *MemoryRepo) Completed(before time.Time) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Task
	for _, t := range r.tasks {
		if t.Status == StatusCompleted && t.FinishedAt != nil && t.FinishedAt.Before(before) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(*out[j].FinishedAt) })
	return out
}
