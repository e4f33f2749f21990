package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBalanceNotFound = errors.New("balance not found")
	// ErrDuplicateEntry: по этой задаче проводка уже есть.
	ErrDuplicateEntry = errors.New("ledger entry for task already exists")
)

type Balance struct {
	UserID    int64     `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delta это изменение баланса. Amount > 0 пополнение, < 0 списание.
// Непустой TaskID делает проводку единственной для задачи.
type Delta struct {
	UserID int64
	Amount int64
	Reason string
	TaskID string
}

type Entry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	TaskID    *string   `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultHistoryLimit применяется, когда History вызван с limit <= 0.
const DefaultHistoryLimit = 20

type Repo interface {
	Get(ctx context.Context, userID int64) (*Balance, error)
	// Open создаёт баланс с начальной суммой; существующий не трогает.
	Open(ctx context.Context, userID, initial int64) (*Balance, error)
	ApplyDelta(ctx context.Context, d Delta) (*Balance, error)
	History(ctx context.Context, userID int64, limit int) ([]*Entry, error)
}
