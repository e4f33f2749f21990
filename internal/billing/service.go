package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/dustin/go-humanize"
)

type service struct {
	tasks  tasks.Repo
	ledger ledger.Repo
	audit  audit.Logger
}

func NewService(taskRepo tasks.Repo, ledgerRepo ledger.Repo, auditLog audit.Logger) Service {
	return &service{
		tasks:  taskRepo,
		ledger: ledgerRepo,
		audit:  auditLog,
	}
}

// ChargeForTask списывает стоимость выполненной задачи. Проводка привязана к
// task id, поэтому повторный вызов ничего не списывает и возвращает
// ErrAlreadyCharged вместе с текущим балансом.
func (s *service) ChargeForTask(ctx context.Context, taskID string) (*tasks.Task, *ledger.Balance, error) {
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	if t.Status != tasks.StatusCompleted || t.Cost == nil {
		return t, nil, fmt.Errorf("%w: task=%s status=%s", ErrNotBillable, t.ID, t.Status)
	}

	b, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		UserID: t.UserID,
		Amount: -*t.Cost,
		Reason: "Оплата задачи " + t.ID,
		TaskID: t.ID,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			current, getErr := s.ledger.Get(ctx, t.UserID)
			if getErr != nil {
				return t, nil, getErr
			}
			return t, current, fmt.Errorf("%w: task=%s", ErrAlreadyCharged, t.ID)
		}
		return t, nil, fmt.Errorf("charge task %s: %w", t.ID, err)
	}

	log.Printf("[billing] charged task=%s user=%d cost=%d balance=%d", t.ID, t.UserID, *t.Cost, b.Balance)
	s.audit.Log(ctx, t.UserID, audit.ActionTaskCharged, fmt.Sprintf("task=%s cost=%d balance=%d", t.ID, *t.Cost, b.Balance))

	return t, b, nil
}

func (s *service) ChargeFixed(ctx context.Context, userID int64, key string, amount int64, reason string) (*ledger.Balance, error) {
	if key == "" || amount <= 0 {
		return nil, fmt.Errorf("charge %q: invalid amount %d", key, amount)
	}

	b, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		UserID: userID,
		Amount: -amount,
		Reason: reason,
		TaskID: key,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			current, getErr := s.ledger.Get(ctx, userID)
			if getErr != nil {
				return nil, getErr
			}
			return current, fmt.Errorf("%w: %s", ErrAlreadyCharged, key)
		}
		return nil, fmt.Errorf("charge %s: %w", key, err)
	}

	log.Printf("[billing] charged %s user=%d amount=%d balance=%d", key, userID, amount, b.Balance)
	s.audit.Log(ctx, userID, audit.ActionTaskCharged, fmt.Sprintf("%s amount=%d balance=%d", key, amount, b.Balance))

	return b, nil
}

// CheckBalance разрешает операцию при положительном балансе.
func (s *service) CheckBalance(ctx context.Context, userID int64) (bool, string, int64, error) {
	b, err := s.ledger.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrBalanceNotFound) {
			return false, "Ошибка: баланс не найден.", 0, nil
		}
		return false, "", 0, err
	}

	if b.Balance > 0 {
		return true, "Баланс положительный, операция разрешена.", b.Balance, nil
	}
	return false, fmt.Sprintf("⚠️ Недостаточно средств. Ваш баланс: %d кредитов.", b.Balance), b.Balance, nil
}

func (s *service) BalanceInfo(ctx context.Context, userID int64) (string, error) {
	b, err := s.ledger.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrBalanceNotFound) {
			return "Ошибка: баланс не найден.", nil
		}
		return "", err
	}
	return FormatBalance(b), nil
}

func (s *service) ReportBalance(b *ledger.Balance) (bool, string) {
	if b.Balance <= 0 {
		return false, fmt.Sprintf(
			"⚠️ Недостаточно средств. Ваш баланс: %s кредитов.\nДля пополнения баланса используй команду /balance",
			humanize.Comma(b.Balance),
		)
	}
	return true, fmt.Sprintf("💰 Ваш текущий баланс: %s кредитов.", humanize.Comma(b.Balance))
}

func (s *service) TopUp(ctx context.Context, userID, amount int64, reason string) (*ledger.Balance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("top up amount must be positive, got %d", amount)
	}

	b, err := s.ledger.ApplyDelta(ctx, ledger.Delta{UserID: userID, Amount: amount, Reason: reason})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, userID, audit.ActionBalanceTopUp, fmt.Sprintf("amount=%d reason=%s balance=%d", amount, reason, b.Balance))
	return b, nil
}

func (s *service) History(ctx context.Context, userID int64, limit int) ([]*ledger.Entry, error) {
	return s.ledger.History(ctx, userID, limit)
}

// FormatBalance: сумма и время последнего обновления.
func FormatBalance(b *ledger.Balance) string {
	return fmt.Sprintf(
		"💰 Ваш текущий баланс: %s кредитов\n📊 Последнее обновление: %s (%s)",
		humanize.Comma(b.Balance),
		b.UpdatedAt.Format("2006-01-02 15:04:05"),
		humanize.Time(b.UpdatedAt),
	)
}
