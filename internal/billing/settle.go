package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const settleBatch = 100

// Unbilled находит выполненные задачи со стоимостью, по которым нет проводки.
type Unbilled interface {
	ListUncharged(ctx context.Context, finishedBefore time.Time, limit int) ([]string, error)
}

// Settler дописывает списания за задачи, которые завершились уже после
// таймаута шлюза. Проводка привязана к task id, поэтому гонка с обычным
// списанием ничего не удваивает.
type Settler struct {
	source  Unbilled
	billing Service
	grace   time.Duration
	log     *zap.SugaredLogger
}

func NewSettler(source Unbilled, svc Service, grace time.Duration, log *zap.SugaredLogger) *Settler {
	return &Settler{source: source, billing: svc, grace: grace, log: log}
}

// Settle списывает за задачи, завершённые раньше now-grace. Возвращает
// число списаний.
func (s *Settler) Settle(ctx context.Context) (int, error) {
	ids, err := s.source.ListUncharged(ctx, time.Now().Add(-s.grace), settleBatch)
	if err != nil {
		return 0, fmt.Errorf("list uncharged: %w", err)
	}

	var (
		n    int
		errs error
	)
	for _, id := range ids {
		t, b, err := s.billing.ChargeForTask(ctx, id)
		switch {
		case err == nil:
			n++
			s.log.Infow("[settle] charged late task", "task_id", id, "user_id", t.UserID, "balance", b.Balance)
		case errors.Is(err, ErrAlreadyCharged), errors.Is(err, ErrNotBillable):
		default:
			errs = multierr.Append(errs, err)
		}
	}
	return n, errs
}

func (s *Settler) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Settle(ctx)
			if err != nil {
				s.log.Errorw("[settle] error", "err", err)
			}
			if n > 0 {
				s.log.Infow("[settle] late tasks charged", "count", n)
			}
		}
	}
}
