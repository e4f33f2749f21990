package conversion

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/Vovarama1992/speech_billing/internal/gateway"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/Vovarama1992/speech_billing/internal/user"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserBlocked         = errors.New("user is blocked")
	ErrTaskFailed          = errors.New("task failed")
)

type InsufficientBalanceError struct {
	Balance int64
	Message string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %d", e.Balance)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

type Gateway interface {
	Process(ctx context.Context, userID, messageID int64, req tasks.Request) (string, *tasks.ReplyMessage, error)
}

type Notifier interface {
	Notify(ctx context.Context, err error, details string) error
}

type Outcome struct {
	TaskID  string          `json:"task_id"`
	Kind    tasks.Kind      `json:"kind"`
	Result  string          `json:"result"`
	Cost    int64           `json:"cost"`
	Balance *ledger.Balance `json:"balance,omitempty"`
}

// Flow: проверка баланса -> задача через шлюз -> одно списание за результат.
type Flow struct {
	gateway Gateway
	billing billing.Service
	users   user.Service
	notify  Notifier
	audit   audit.Logger
	log     *zap.SugaredLogger
}

func NewFlow(
	gw Gateway,
	billingSvc billing.Service,
	users user.Service,
	notify Notifier,
	auditLog audit.Logger,
	log *zap.SugaredLogger,
) *Flow {
	return &Flow{
		gateway: gw,
		billing: billingSvc,
		users:   users,
		notify:  notify,
		audit:   auditLog,
		log:     log,
	}
}

// Convert выполняет задачу для пользователя. При ошибке задачи
// возвращается ErrTaskFailed, подробности уходят в аудит и админу.
func (f *Flow) Convert(ctx context.Context, userID, messageID int64, req tasks.Request) (*Outcome, error) {
	if err := f.admit(ctx, userID); err != nil {
		return nil, err
	}

	taskID, reply, err := f.gateway.Process(ctx, userID, messageID, req)
	if err != nil {
		if !errors.Is(err, gateway.ErrTimeout) {
			f.report(ctx, userID, err, fmt.Sprintf("process task=%s kind=%s", taskID, req.Kind()))
		}
		return &Outcome{TaskID: taskID, Kind: req.Kind()}, err
	}

	out := &Outcome{TaskID: taskID, Kind: req.Kind()}
	if reply.Cost != nil {
		out.Cost = *reply.Cost
	}

	if !reply.OK() {
		f.report(ctx, userID, errors.New(reply.Message), "task="+taskID)
		return out, fmt.Errorf("%w: task=%s", ErrTaskFailed, taskID)
	}
	out.Result = reply.Result

	_, b, err := f.billing.ChargeForTask(ctx, taskID)
	switch {
	case err == nil, errors.Is(err, billing.ErrAlreadyCharged):
		out.Balance = b
	default:
		// результат уже получен, отдаём его даже если списание не прошло
		f.report(ctx, userID, err, "charge task="+taskID)
	}

	return out, nil
}

// Charge списывает фиксированную сумму за операцию без задачи, с теми же
// проверками пользователя и баланса, что и Convert. Повтор с тем же key
// ничего не списывает.
func (f *Flow) Charge(ctx context.Context, userID int64, key string, amount int64, reason string) (*ledger.Balance, error) {
	if err := f.admit(ctx, userID); err != nil {
		return nil, err
	}

	b, err := f.billing.ChargeFixed(ctx, userID, key, amount, reason)
	switch {
	case err == nil, errors.Is(err, billing.ErrAlreadyCharged):
		return b, nil
	default:
		f.report(ctx, userID, err, "charge "+key)
		return nil, err
	}
}

func (f *Flow) admit(ctx context.Context, userID int64) error {
	u, err := f.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return fmt.Errorf("%w: %d", ErrUserBlocked, userID)
	}

	allowed, msg, balance, err := f.billing.CheckBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("check balance: %w", err)
	}
	if !allowed {
		return &InsufficientBalanceError{Balance: balance, Message: msg}
	}
	return nil
}

func (f *Flow) report(ctx context.Context, userID int64, err error, details string) {
	f.log.Errorw("[conversion] failure", "user_id", userID, "details", details, "err", err)
	f.audit.Log(ctx, userID, audit.ActionBotError, fmt.Sprintf("%s: %v", details, err))
	_ = f.notify.Notify(ctx, err, fmt.Sprintf("user=%d %s", userID, details))
}

// UserMessage возвращает текст ошибки для конечного пользователя.
func UserMessage(err error) string {
	var balErr *InsufficientBalanceError
	switch {
	case errors.As(err, &balErr):
		return balErr.Message + "\nДля пополнения баланса используй команду /balance"
	case errors.Is(err, user.ErrUserNotFound):
		return "Сначала отправь /start, чтобы зарегистрироваться."
	case errors.Is(err, ErrUserBlocked):
		return "Извините, ваш аккаунт заблокирован."
	case errors.Is(err, gateway.ErrTimeout):
		return "⏳ Задача выполняется дольше обычного. Попробуйте ещё раз позже."
	}
	return "Произошла ошибка при обработке сообщения."
}
