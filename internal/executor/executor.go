package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/broker"
	"github.com/Vovarama1992/speech_billing/internal/pricing"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"go.uber.org/zap"
)

var (
	ErrInterrupted       = errors.New("processing interrupted")
	ErrAlreadyProcessing = errors.New("task is already being processed")
	// ErrNotSaved: состояние задачи не записано, сообщение надо вернуть в очередь.
	ErrNotSaved = errors.New("task state not saved")
)

// settleTimeout ограничивает запись результата и ответ после остановки воркера.
const settleTimeout = 5 * time.Second

type Speech interface {
	ToSpeech(ctx context.Context, userID int64, taskID, text string) (string, error)
	ToText(ctx context.Context, audio []byte) (string, error)
}

type AudioSource interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

type Executor struct {
	tasks    tasks.Repo
	broker   broker.Broker
	queue    string
	prefetch int
	speech   Speech
	audio    AudioSource
	price    pricing.Func
	log      *zap.SugaredLogger
	audit    audit.Logger
}

func New(
	repo tasks.Repo,
	b broker.Broker,
	queue string,
	prefetch int,
	speech Speech,
	audio AudioSource,
	price pricing.Func,
	log *zap.SugaredLogger,
	auditLog audit.Logger,
) *Executor {
	return &Executor{
		tasks:    repo,
		broker:   b,
		queue:    queue,
		prefetch: prefetch,
		speech:   speech,
		audio:    audio,
		price:    price,
		log:      log,
		audit:    auditLog,
	}
}

// Run работает, пока не отменён ctx. Ошибка транспорта возвращается
// наверх, перезапуск процесса делается снаружи.
func (e *Executor) Run(ctx context.Context) error {
	e.log.Infow("[executor] started", "queue", e.queue, "prefetch", e.prefetch)
	return e.broker.Consume(ctx, e.queue, e.prefetch, e.Handle)
}

// Handle обрабатывает одно сообщение. Сообщение подтверждается, когда задача
// дошла до терминального состояния или отклонена; повторно задача не
// выполняется. Если состояние записать не удалось, сообщение возвращается в
// очередь, и повторная доставка переведёт задачу в ERROR.
func (e *Executor) Handle(ctx context.Context, d broker.Delivery) {
	msg, err := tasks.DecodeTask(d.Body)
	if err != nil {
		e.log.Warnw("[executor] bad message", "task_id", msg.TaskID, "err", err)
		if msg.TaskID != "" {
			e.settle(ctx, d, tasks.ErrorReply(msg.TaskID, msg.Kind, err))
		} else {
			e.ack(d)
		}
		return
	}

	t, err := e.Process(ctx, msg, d.Redelivered)
	switch {
	case errors.Is(err, ErrNotSaved):
		e.log.Errorw("[executor] task state not saved, requeue", "task_id", msg.TaskID, "err", err)
		if nErr := d.Nack(true); nErr != nil {
			e.log.Errorw("[executor] nack failed", "correlation_id", d.CorrelationID, "err", nErr)
		}
	case err != nil:
		e.log.Warnw("[executor] task rejected", "task_id", msg.TaskID, "err", err)
		e.settle(ctx, d, tasks.ErrorReply(msg.TaskID, msg.Kind, err))
	default:
		e.settle(ctx, d, tasks.ReplyFromTask(t))
	}
}

// settle отправляет ответ и подтверждает сообщение даже при отменённом ctx.
func (e *Executor) settle(ctx context.Context, d broker.Delivery, r tasks.ReplyMessage) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	e.reply(sctx, d, r)
	e.ack(d)
}

func (e *Executor) ack(d broker.Delivery) {
	if err := d.Ack(); err != nil {
		e.log.Errorw("[executor] ack failed", "correlation_id", d.CorrelationID, "err", err)
	}
}

// Process переводит задачу CREATED -> PROCESSING -> COMPLETED|ERROR и
// возвращает её терминальное состояние.
func (e *Executor) Process(ctx context.Context, msg tasks.TaskMessage, redelivered bool) (*tasks.Task, error) {
	t, err := e.tasks.Update(ctx, msg.TaskID, tasks.Update{From: tasks.StatusCreated, To: tasks.StatusProcessing})
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			return nil, err
		}
		if !errors.Is(err, tasks.ErrInvalidTransition) || t == nil {
			return nil, fmt.Errorf("%w: start task %s: %w", ErrNotSaved, msg.TaskID, err)
		}

		switch {
		case t.Status.IsTerminal():
			e.log.Infow("[executor] task already finished, replaying outcome", "task_id", t.ID, "status", t.Status)
			return t, nil
		case t.Status == tasks.StatusProcessing && redelivered:
			e.log.Warnw("[executor] redelivered task was in progress", "task_id", t.ID)
			return e.finish(ctx, t, "", nil, ErrInterrupted)
		default:
			return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessing, t.ID)
		}
	}

	e.log.Infow("[executor] processing", "task_id", t.ID, "kind", t.Kind, "user_id", t.UserID)

	result, cost, execErr := e.execute(ctx, t)
	return e.finish(ctx, t, result, cost, execErr)
}

func (e *Executor) execute(ctx context.Context, t *tasks.Task) (result string, cost *int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing: %v", r)
		}
	}()

	req, err := t.Request()
	if err != nil {
		return "", nil, err
	}

	switch r := req.(type) {
	case tasks.SpeechToText:
		audio, err := e.audio.Load(ctx, r.AudioRef)
		if err != nil {
			return "", nil, fmt.Errorf("fetch audio %s: %w", r.AudioRef, err)
		}
		c, err := e.price(tasks.KindSpeechToText, audio)
		if err != nil {
			return "", nil, fmt.Errorf("price: %w", err)
		}
		text, err := e.speech.ToText(ctx, audio)
		if err != nil {
			return "", &c, fmt.Errorf("speech to text: %w", err)
		}
		return text, &c, nil

	case tasks.TextToSpeech:
		c, err := e.price(tasks.KindTextToSpeech, []byte(r.Text))
		if err != nil {
			return "", nil, fmt.Errorf("price: %w", err)
		}
		ref, err := e.speech.ToSpeech(ctx, t.UserID, t.ID, r.Text)
		if err != nil {
			return "", &c, fmt.Errorf("text to speech: %w", err)
		}
		return ref, &c, nil
	}

	return "", nil, fmt.Errorf("%w: %s", tasks.ErrUnknownKind, t.Kind)
}

func (e *Executor) finish(ctx context.Context, t *tasks.Task, result string, cost *int64, execErr error) (*tasks.Task, error) {
	u := tasks.Update{From: tasks.StatusProcessing, To: tasks.StatusCompleted, Result: &result, Cost: cost}
	if execErr != nil {
		diag := execErr.Error()
		u = tasks.Update{From: tasks.StatusProcessing, To: tasks.StatusError, Result: &diag, Cost: cost}
	}

	// результат пишется и после остановки воркера
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	done, err := e.tasks.Update(ctx, t.ID, u)
	if err != nil {
		// кто-то завершил задачу раньше; отдаём его результат
		if errors.Is(err, tasks.ErrInvalidTransition) && done != nil && done.Status.IsTerminal() {
			return done, nil
		}
		return nil, fmt.Errorf("%w: finish task %s: %w", ErrNotSaved, t.ID, err)
	}

	if execErr != nil {
		e.log.Warnw("[executor] task failed", "task_id", t.ID, "err", execErr)
		e.audit.Log(ctx, t.UserID, audit.ActionTaskFailed, fmt.Sprintf("task=%s err=%v", t.ID, execErr))
	} else {
		e.log.Infow("[executor] task completed", "task_id", t.ID, "cost", *cost)
		e.audit.Log(ctx, t.UserID, audit.ActionTaskCompleted, fmt.Sprintf("task=%s cost=%d", t.ID, *cost))
	}
	return done, nil
}

func (e *Executor) reply(ctx context.Context, d broker.Delivery, r tasks.ReplyMessage) {
	if d.ReplyTo == "" {
		e.log.Infow("[executor] no reply_to, not replying", "task_id", r.TaskID, "status", r.Status)
		return
	}

	body, err := tasks.EncodeReply(r)
	if err != nil {
		e.log.Errorw("[executor] encode reply", "task_id", r.TaskID, "err", err)
		return
	}

	if err := e.broker.Publish(ctx, d.ReplyTo, broker.Message{Body: body, CorrelationID: d.CorrelationID}); err != nil {
		e.log.Errorw("[executor] publish reply", "task_id", r.TaskID, "reply_to", d.ReplyTo, "err", err)
	}
}
