package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/broker"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

var (
	ErrTimeout     = errors.New("timed out waiting for task result")
	ErrUnknownCall = errors.New("no pending call for task")
)

type call struct {
	correlationID string
	queue         broker.ReplyQueue
}

// Gateway создаёт задачи, отправляет их исполнителям и ждёт ответ.
// Ожидание одного вызова не блокирует остальные.
type Gateway struct {
	tasks   tasks.Repo
	broker  broker.Broker
	queue   string
	timeout time.Duration
	log     *zap.SugaredLogger
	audit   audit.Logger

	mu      sync.Mutex
	pending map[string]*call
}

func New(
	repo tasks.Repo,
	b broker.Broker,
	queue string,
	timeout time.Duration,
	log *zap.SugaredLogger,
	auditLog audit.Logger,
) *Gateway {
	return &Gateway{
		tasks:   repo,
		broker:  b,
		queue:   queue,
		timeout: timeout,
		log:     log,
		audit:   auditLog,
		pending: make(map[string]*call),
	}
}

// NewTaskID уникален для пары (пользователь, сообщение) и дополнительно
// содержит случайный xid.
func NewTaskID(userID, messageID int64) string {
	return fmt.Sprintf("%d_%d_%s", userID, messageID, xid.New().String())
}

// Submit открывает очередь ответа, сохраняет задачу в CREATED и только
// потом публикует её.
func (g *Gateway) Submit(ctx context.Context, userID, messageID int64, req tasks.Request) (string, error) {
	if err := tasks.Validate(req); err != nil {
		return "", err
	}

	rq, err := g.broker.OpenReplyQueue(ctx)
	if err != nil {
		return "", fmt.Errorf("open reply queue: %w", err)
	}

	t := &tasks.Task{
		ID:      NewTaskID(userID, messageID),
		UserID:  userID,
		Kind:    req.Kind(),
		Payload: req.Payload(),
	}
	if err := g.tasks.Create(ctx, t); err != nil {
		rq.Close()
		return "", fmt.Errorf("create task: %w", err)
	}

	c := &call{correlationID: uuid.NewString(), queue: rq}

	body, err := tasks.EncodeTask(tasks.NewTaskMessage(t, c.correlationID))
	if err != nil {
		rq.Close()
		return "", err
	}

	g.mu.Lock()
	g.pending[t.ID] = c
	g.mu.Unlock()

	err = g.broker.Publish(ctx, g.queue, broker.Message{
		Body:          body,
		CorrelationID: c.correlationID,
		ReplyTo:       rq.Name(),
	})
	if err != nil {
		g.forget(t.ID)
		rq.Close()
		g.log.Errorw("[gateway] publish failed", "task_id", t.ID, "err", err)
		return "", fmt.Errorf("publish task %s: %w", t.ID, err)
	}

	g.log.Infow("[gateway] task sent",
		"task_id", t.ID,
		"user_id", userID,
		"kind", t.Kind,
		"correlation_id", c.correlationID,
		"reply_to", rq.Name(),
	)
	g.audit.Log(ctx, userID, audit.ActionTaskCreated, fmt.Sprintf("task=%s kind=%s", t.ID, t.Kind))

	return t.ID, nil
}

// AwaitResult ждёт ответ на задачу. Ответы с чужим correlation id
// отбрасываются. Таймаут не меняет состояние задачи. Очередь ответа
// удаляется при любом исходе.
func (g *Gateway) AwaitResult(ctx context.Context, taskID string, timeout time.Duration) (*tasks.ReplyMessage, error) {
	c := g.forget(taskID)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCall, taskID)
	}
	defer c.queue.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timer.C:
			g.log.Warnw("[gateway] reply timeout", "task_id", taskID, "timeout", timeout)
			return nil, fmt.Errorf("%w: task=%s after %s", ErrTimeout, taskID, timeout)

		case msg, ok := <-c.queue.Deliveries():
			if !ok {
				return nil, fmt.Errorf("reply queue for %s: %w", taskID, broker.ErrClosed)
			}
			if msg.CorrelationID != c.correlationID {
				g.log.Warnw("[gateway] discarding reply with foreign correlation id",
					"task_id", taskID,
					"expected", c.correlationID,
					"got", msg.CorrelationID,
				)
				continue
			}

			reply, err := tasks.DecodeReply(msg.Body)
			if err != nil {
				return nil, err
			}
			g.log.Infow("[gateway] reply received", "task_id", taskID, "status", reply.Status)
			return &reply, nil
		}
	}
}

// Process = Submit + AwaitResult с таймаутом по умолчанию.
func (g *Gateway) Process(ctx context.Context, userID, messageID int64, req tasks.Request) (string, *tasks.ReplyMessage, error) {
	taskID, err := g.Submit(ctx, userID, messageID, req)
	if err != nil {
		return "", nil, err
	}

	reply, err := g.AwaitResult(ctx, taskID, g.timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			g.audit.Log(ctx, userID, audit.ActionRPCTimeout, "task="+taskID)
		}
		return taskID, nil, err
	}
	return taskID, reply, nil
}

// Pending возвращает число ожидающих вызовов.
func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Gateway) forget(taskID string) *call {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.pending[taskID]
	delete(g.pending, taskID)
	return c
}
