package billing

import (
	"context"
	"errors"

	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
)

var (
	// ErrNotBillable: задача не в COMPLETED или у неё нет стоимости.
	ErrNotBillable = errors.New("task is not billable")
	// ErrAlreadyCharged: за задачу уже списано, баланс не изменён.
	ErrAlreadyCharged = errors.New("task already charged")
)

type Service interface {
	ChargeForTask(ctx context.Context, taskID string) (*tasks.Task, *ledger.Balance, error)
	// ChargeFixed списывает фиксированную сумму за операцию вне конвейера.
	// key делает списание идемпотентным.
	ChargeFixed(ctx context.Context, userID int64, key string, amount int64, reason string) (*ledger.Balance, error)
	CheckBalance(ctx context.Context, userID int64) (allowed bool, message string, balance int64, err error)
	BalanceInfo(ctx context.Context, userID int64) (string, error)
	ReportBalance(b *ledger.Balance) (ok bool, message string)
	TopUp(ctx context.Context, userID, amount int64, reason string) (*ledger.Balance, error)
	History(ctx context.Context, userID int64, limit int) ([]*ledger.Entry, error)
}
