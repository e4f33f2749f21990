package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu       sync.Mutex
	balances map[int64]*Balance
	entries  []*Entry
	charged  map[string]struct{}
	nextID   int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		balances: make(map[int64]*Balance),
		charged:  make(map[string]struct{}),
	}
}

func (r *MemoryRepo) Get(_ context.Context, userID int64) (*Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.balances[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user=%d", ErrBalanceNotFound, userID)
	}
	c := *b
	return &c, nil
}

func (r *MemoryRepo) Open(ctx context.Context, userID, initial int64) (*Balance, error) {
	r.mu.Lock()
	if _, ok := r.balances[userID]; !ok {
		r.balances[userID] = &Balance{UserID: userID, Balance: initial, UpdatedAt: time.Now()}
		if initial != 0 {
			r.appendEntry(userID, initial, "start balance", nil)
		}
	}
	r.mu.Unlock()

	return r.Get(ctx, userID)
}

func (r *MemoryRepo) ApplyDelta(_ context.Context, d Delta) (*Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.balances[d.UserID]
	if !ok {
		return nil, fmt.Errorf("%w: user=%d", ErrBalanceNotFound, d.UserID)
	}

	var taskID *string
	if d.TaskID != "" {
		if _, dup := r.charged[d.TaskID]; dup {
			return nil, fmt.Errorf("%w: task=%s", ErrDuplicateEntry, d.TaskID)
		}
		r.charged[d.TaskID] = struct{}{}
		id := d.TaskID
		taskID = &id
	}

	b.Balance += d.Amount
	b.UpdatedAt = time.Now()
	r.appendEntry(d.UserID, d.Amount, d.Reason, taskID)

	c := *b
	return &c, nil
}

func (r *MemoryRepo) History(_ context.Context, userID int64, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if e := r.entries[i]; e.UserID == userID {
			c := *e
			out = append(out, &c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryRepo) appendEntry(userID, amount int64, reason string, taskID *string) {
	r.nextID++
	r.entries = append(r.entries, &Entry{
		ID:        r.nextID,
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		TaskID:    taskID,
		CreatedAt: time.Now(),
	})
}

// HasEntry сообщает, есть ли проводка по задаче.
func (r *MemoryRepo) HasEntry(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.charged[taskID]
	return ok
}
