package audit

import (
	"context"
	"time"
)

const (
	ActionUserCreated   = "USER_CREATED"
	ActionBotStarted    = "BOT_STARTED"
	ActionBotError      = "BOT_ERROR"
	ActionWorkerStarted = "WORKER_STARTED"
	ActionTaskCreated   = "TASK_CREATED"
	ActionTaskCompleted = "TASK_COMPLETED"
	ActionTaskFailed    = "TASK_FAILED"
	ActionTaskCharged   = "TASK_CHARGED"
	ActionBalanceTopUp  = "BALANCE_TOPUP"
	ActionRPCTimeout    = "RPC_TIMEOUT"
)

type Record struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo interface {
	Insert(ctx context.Context, r *Record) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Record, error)
}

// Logger пишет запись аудита. Ошибки записи не возвращаются вызывающему.
type Logger interface {
	Log(ctx context.Context, userID int64, action, details string)
}
