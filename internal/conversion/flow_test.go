package conversion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/Vovarama1992/speech_billing/internal/broker"
	"github.com/Vovarama1992/speech_billing/internal/executor"
	"github.com/Vovarama1992/speech_billing/internal/gateway"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/pricing"
	"github.com/Vovarama1992/speech_billing/internal/speech"
	"github.com/Vovarama1992/speech_billing/internal/storage"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/Vovarama1992/speech_billing/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const queue = "task_processing"

type fakeTTS struct{}

func (fakeTTS) Synthesize(_ context.Context, text string) (*speech.Audio, error) {
	return &speech.Audio{Data: []byte("OggS" + text), Ext: "ogg", ContentType: "audio/ogg"}, nil
}

type fakeSTT struct{}

func (fakeSTT) Transcribe(_ context.Context, audio []byte) (string, error) {
	return "привет", nil
}

type countingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *countingNotifier) Notify(_ context.Context, err error, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

type pipeline struct {
	flow   *Flow
	tasks  *tasks.MemoryRepo
	ledger *ledger.MemoryRepo
	users  user.Service
	store  *storage.LocalStore
	audit  *audit.MemoryRepo
	notify *countingNotifier
	broker *broker.Memory
	exec   *executor.Executor
	bill   billing.Service
}

func newPipeline(t *testing.T, timeout time.Duration, withWorker bool) *pipeline {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	p := &pipeline{
		tasks:  tasks.NewMemoryRepo(),
		ledger: ledger.NewMemoryRepo(),
		store:  store,
		audit:  audit.NewMemoryRepo(),
		notify: &countingNotifier{},
	}
	auditSvc := audit.NewService(p.audit, log)
	p.users = user.NewService(user.NewMemoryInfra(), p.ledger, 20)

	p.broker = broker.NewMemory()
	require.NoError(t, p.broker.DeclareWorkQueue(queue))

	p.exec = executor.New(p.tasks, p.broker, queue, 2, speech.NewService(fakeSTT{}, fakeTTS{}, store), store,
		pricing.Flat, log, auditSvc)
	if withWorker {
		p.startWorker(t)
	}

	gw := gateway.New(p.tasks, p.broker, queue, timeout, log, auditSvc)
	p.bill = billing.NewService(p.tasks, p.ledger, auditSvc)
	p.flow = NewFlow(gw, p.bill, p.users, p.notify, auditSvc, log)
	return p
}

func (p *pipeline) startWorker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.exec.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (p *pipeline) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := p.ledger.Get(context.Background(), userID)
	require.NoError(t, err)
	return b.Balance
}

func TestConvert_TextToSpeechChargesOnce(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 2*time.Second, true)
	_, _, err := p.users.Register(ctx, 7, "alice")
	require.NoError(t, err)

	out, err := p.flow.Convert(ctx, 7, 100, tasks.TextToSpeech{Text: "Привет"})
	require.NoError(t, err)

	assert.Equal(t, tasks.KindTextToSpeech, out.Kind)
	assert.Equal(t, pricing.FlatTextToSpeech, out.Cost)
	require.NotNil(t, out.Balance)
	assert.Equal(t, int64(15), out.Balance.Balance)
	assert.Equal(t, int64(15), p.balance(t, 7))

	data, err := p.store.Load(ctx, out.Result)
	require.NoError(t, err)
	assert.Equal(t, "OggSПривет", string(data))

	task, err := p.tasks.Get(ctx, out.TaskID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCompleted, task.Status)

	history, err := p.ledger.History(ctx, 7, 0)
	require.NoError(t, err)
	var charges int
	for _, e := range history {
		if e.TaskID != nil && *e.TaskID == out.TaskID {
			charges++
		}
	}
	assert.Equal(t, 1, charges)
}

func TestConvert_SpeechToText(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 2*time.Second, true)
	_, _, err := p.users.Register(ctx, 8, "bob")
	require.NoError(t, err)

	ref, err := p.store.Save(ctx, storage.Key(storage.In, 8, "m1", "ogg"), []byte("OggS"), "audio/ogg")
	require.NoError(t, err)

	out, err := p.flow.Convert(ctx, 8, 101, tasks.SpeechToText{AudioRef: ref})
	require.NoError(t, err)
	assert.Equal(t, "привет", out.Result)
	assert.Equal(t, int64(16), p.balance(t, 8))
}

func TestConvert_FailedTaskIsNotCharged(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 2*time.Second, true)
	_, _, err := p.users.Register(ctx, 9, "carol")
	require.NoError(t, err)

	out, err := p.flow.Convert(ctx, 9, 102, tasks.SpeechToText{AudioRef: "audio/in_9_missing.ogg"})
	require.ErrorIs(t, err, ErrTaskFailed)
	require.NotNil(t, out)

	task, err := p.tasks.Get(ctx, out.TaskID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusError, task.Status)
	assert.Nil(t, task.Cost)
	assert.Equal(t, int64(20), p.balance(t, 9))
	assert.Equal(t, 1, p.notify.count())
	assert.Equal(t, "Произошла ошибка при обработке сообщения.", UserMessage(err))
}

func TestConvert_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 2*time.Second, true)
	_, _, err := p.users.Register(ctx, 10, "dave")
	require.NoError(t, err)
	_, err = p.ledger.ApplyDelta(ctx, ledger.Delta{UserID: 10, Amount: -20, Reason: "test"})
	require.NoError(t, err)

	_, err = p.flow.Convert(ctx, 10, 103, tasks.TextToSpeech{Text: "hi"})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	var balErr *InsufficientBalanceError
	require.True(t, errors.As(err, &balErr))
	assert.Equal(t, int64(0), balErr.Balance)
	assert.Contains(t, UserMessage(err), "/balance")

	list, err := p.tasks.ListByUser(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConvert_BlockedUser(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 2*time.Second, true)
	_, _, err := p.users.Register(ctx, 11, "eve")
	require.NoError(t, err)
	require.NoError(t, p.users.SetActive(ctx, 11, false))

	_, err = p.flow.Convert(ctx, 11, 104, tasks.TextToSpeech{Text: "hi"})
	assert.ErrorIs(t, err, ErrUserBlocked)
	assert.Equal(t, int64(20), p.balance(t, 11))
}

func TestConvert_UnknownUser(t *testing.T) {
	p := newPipeline(t, 2*time.Second, true)
	_, err := p.flow.Convert(context.Background(), 404, 1, tasks.TextToSpeech{Text: "hi"})
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.Contains(t, UserMessage(err), "/start")
}

func TestConvert_TimeoutLeavesTaskUntouched(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 50*time.Millisecond, false)
	_, _, err := p.users.Register(ctx, 12, "frank")
	require.NoError(t, err)

	out, convErr := p.flow.Convert(ctx, 12, 105, tasks.TextToSpeech{Text: "hi"})
	require.ErrorIs(t, convErr, gateway.ErrTimeout)

	task, err := p.tasks.Get(ctx, out.TaskID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCreated, task.Status)
	assert.Equal(t, int64(20), p.balance(t, 12))
	assert.Zero(t, p.notify.count())
	assert.Contains(t, p.audit.Actions(), audit.ActionRPCTimeout)
	assert.Contains(t, UserMessage(convErr), "дольше обычного")
}

func TestConvert_LateCompletionAfterTimeout(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 50*time.Millisecond, false)
	_, _, err := p.users.Register(ctx, 13, "grace")
	require.NoError(t, err)

	out, err := p.flow.Convert(ctx, 13, 106, tasks.TextToSpeech{Text: "поздно"})
	require.ErrorIs(t, err, gateway.ErrTimeout)

	// воркер поднимается после таймаута и берёт задачу из очереди
	p.startWorker(t)

	require.Eventually(t, func() bool {
		task, err := p.tasks.Get(ctx, out.TaskID)
		return err == nil && task.Status == tasks.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return p.broker.Acked() == 1 }, time.Second, 10*time.Millisecond)

	task, err := p.tasks.Get(ctx, out.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task.Cost)
	assert.Equal(t, pricing.FlatTextToSpeech, *task.Cost)
	assert.NotNil(t, task.FinishedAt)
	require.NotNil(t, task.Result)

	// ответ ушёл в уже удалённую очередь и просто потерялся
	assert.Zero(t, p.broker.Nacked())
	assert.Equal(t, int64(20), p.balance(t, 13))

	settler := billing.NewSettler(billing.NewMemoryUnbilled(p.tasks, p.ledger), p.bill, 0, zaptest.NewLogger(t).Sugar())
	n, err := settler.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(15), p.balance(t, 13))

	n, err = settler.Settle(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(15), p.balance(t, 13))
}

func TestCharge_FixedAmountOnce(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, time.Second, false)
	_, _, err := p.users.Register(ctx, 14, "heidi")
	require.NoError(t, err)

	b, err := p.flow.Charge(ctx, 14, "joke:14_1", 1, "joke")
	require.NoError(t, err)
	assert.Equal(t, int64(19), b.Balance)

	b, err = p.flow.Charge(ctx, 14, "joke:14_1", 1, "joke")
	require.NoError(t, err)
	assert.Equal(t, int64(19), b.Balance)
	assert.Equal(t, int64(19), p.balance(t, 14))
}

func TestCharge_Admission(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, time.Second, false)

	_, err := p.flow.Charge(ctx, 15, "joke:15_1", 1, "joke")
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	_, _, err = p.users.Register(ctx, 15, "ivan")
	require.NoError(t, err)
	_, err = p.ledger.ApplyDelta(ctx, ledger.Delta{UserID: 15, Amount: -20, Reason: "spent"})
	require.NoError(t, err)

	_, err = p.flow.Charge(ctx, 15, "joke:15_2", 1, "joke")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, p.users.SetActive(ctx, 15, false))
	_, err = p.flow.Charge(ctx, 15, "joke:15_3", 1, "joke")
	assert.ErrorIs(t, err, ErrUserBlocked)
	assert.Equal(t, int64(0), p.balance(t, 15))
}
